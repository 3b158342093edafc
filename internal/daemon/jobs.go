package daemon

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/pkg/checkpoint"
)

// Jobs runs periodic maintenance on a cron schedule.
type Jobs struct {
	cron   *cron.Cron
	logger zerolog.Logger
	count  int
}

// NewJobs creates an empty scheduler.
func NewJobs(logger zerolog.Logger) *Jobs {
	return &Jobs{
		cron:   cron.New(),
		logger: logger.With().Str("component", "jobs").Logger(),
	}
}

// AddCheckpointSweep drops in-memory checkpoints idle for longer than maxIdle.
func (j *Jobs) AddCheckpointSweep(spec string, store *checkpoint.MemoryStore, maxIdle time.Duration) error {
	if maxIdle <= 0 {
		return fmt.Errorf("checkpoint sweep needs a positive ttl")
	}
	_, err := j.cron.AddFunc(spec, func() {
		removed := store.Sweep(maxIdle)
		if removed > 0 {
			j.logger.Info().Int("removed", removed).Int("remaining", store.Len()).Msg("Swept idle checkpoints")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid checkpoint sweep schedule %q: %w", spec, err)
	}
	j.count++
	return nil
}

// Len returns the number of scheduled jobs.
func (j *Jobs) Len() int {
	return j.count
}

func (j *Jobs) Start() {
	j.cron.Start()
}

// Stop waits for running jobs to finish.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
}
