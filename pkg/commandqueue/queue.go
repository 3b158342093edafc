package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("command queue closed")

// Task represents an asynchronous operation to be executed
type Task func(ctx context.Context) (interface{}, error)

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

type laneState struct {
	queue   []*taskRecord
	running bool
}

// CommandQueue provides lane-based task serialization
type CommandQueue struct {
	lanes     map[string]*laneState
	taskIDSeq int
	closed    bool
	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new CommandQueue
func New() *CommandQueue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	return &CommandQueue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ConversationLane names the lane that serializes turns of one conversation.
func ConversationLane(conversationID string) string {
	return "conversation:" + conversationID
}

// laneKind is the metric label for a lane; ids are dropped to bound
// cardinality.
func laneKind(lane string) string {
	kind, _, _ := strings.Cut(lane, ":")
	return kind
}

// Enqueue adds a task to lane and waits for its result.
func (cq *CommandQueue) Enqueue(ctx context.Context, lane string, task Task) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"legalbot.commandqueue",
		"commandqueue.enqueue",
		attribute.String("lane", lane),
	)
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		tracing.EndSpan(span, ErrClosed)
		return nil, ErrClosed
	}
	cq.taskIDSeq++
	record := &taskRecord{
		id:         fmt.Sprintf("%s-%d", lane, cq.taskIDSeq),
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}
	ls, ok := cq.lanes[lane]
	if !ok {
		ls = &laneState{}
		cq.lanes[lane] = ls
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	if !ls.running {
		ls.running = true
		cq.wg.Add(1)
		go cq.drain(lane, ls)
	}
	cq.mu.Unlock()

	logger.Debug().Str("lane", lane).Str("taskId", record.id).Int("queueSize", queueSize).Msg("Task enqueued")
	observability.RecordQueueEnqueue(laneKind(lane), queueSize)

	var res taskResult
	select {
	case res = <-record.result:
	case <-ctx.Done():
		if cq.withdraw(lane, record) {
			res = taskResult{err: ctx.Err()}
		} else {
			res = <-record.result
		}
	}
	tracing.EndSpan(span, res.err)
	return res.value, res.err
}

// withdraw removes a still-queued record. It reports false when the record
// already started.
func (cq *CommandQueue) withdraw(lane string, record *taskRecord) bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	ls, ok := cq.lanes[lane]
	if !ok {
		return false
	}
	for i, r := range ls.queue {
		if r == record {
			ls.queue = append(ls.queue[:i], ls.queue[i+1:]...)
			return true
		}
	}
	return false
}

// drain runs queued tasks of one lane until it is empty, then removes the lane.
func (cq *CommandQueue) drain(lane string, ls *laneState) {
	defer cq.wg.Done()

	for {
		cq.mu.Lock()
		if len(ls.queue) == 0 {
			ls.running = false
			delete(cq.lanes, lane)
			cq.mu.Unlock()
			return
		}
		record := ls.queue[0]
		ls.queue = ls.queue[1:]
		remaining := len(ls.queue)
		cq.mu.Unlock()

		cq.executeTask(lane, record, remaining)
	}
}

// executeTask executes a single task
func (cq *CommandQueue) executeTask(lane string, record *taskRecord, remaining int) {
	taskCtx, span := tracing.StartSpan(
		record.ctx,
		"legalbot.commandqueue",
		"commandqueue.execute_task",
		attribute.String("lane", lane),
		attribute.String("task_id", record.id),
	)
	logger := tracing.LoggerFromContext(taskCtx, log.Logger)

	runCtx, cancel := context.WithCancel(taskCtx)
	stopCancel := context.AfterFunc(cq.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	value, err := runTask(runCtx, record.task)
	duration := time.Since(startTime)

	record.result <- taskResult{value: value, err: err}

	if err != nil {
		logger.Debug().Str("lane", lane).Str("taskId", record.id).Dur("duration", duration).Err(err).Msg("Task failed")
	} else {
		logger.Debug().Str("lane", lane).Str("taskId", record.id).Dur("duration", duration).Msg("Task completed")
	}
	observability.RecordQueueCompletion(laneKind(lane), duration, remaining)
	tracing.EndSpan(span, err)
}

func runTask(ctx context.Context, task Task) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// QueueSize returns the number of queued, not yet running, tasks for a lane
func (cq *CommandQueue) QueueSize(lane string) int {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if ls, ok := cq.lanes[lane]; ok {
		return len(ls.queue)
	}
	return 0
}

// ActiveLanes returns the number of lanes with queued or running work.
func (cq *CommandQueue) ActiveLanes() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return len(cq.lanes)
}

// Close cancels running tasks, fails queued ones and waits for lanes to stop.
func (cq *CommandQueue) Close() error {
	cq.mu.Lock()
	cq.closed = true
	for _, ls := range cq.lanes {
		for _, record := range ls.queue {
			record.result <- taskResult{err: ErrClosed}
		}
		ls.queue = nil
	}
	cq.mu.Unlock()

	cq.cancel()
	cq.wg.Wait()
	return nil
}
