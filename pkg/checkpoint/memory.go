package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
)

type memoryEntry struct {
	state    agent.State
	lastUsed time.Time
}

// MemoryStore keeps checkpoints in process memory. Idle entries are evicted
// by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	limits  Limits
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(limits Limits) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		limits:  limits,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) (agent.State, error) {
	if err := validateID(conversationID); err != nil {
		return agent.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[conversationID]
	if !ok {
		return agent.State{}, nil
	}
	entry.lastUsed = s.now()
	return copyState(entry.state), nil
}

func (s *MemoryStore) Save(ctx context.Context, conversationID string, state agent.State) error {
	if err := validateID(conversationID); err != nil {
		return err
	}
	state = s.limits.Apply(copyState(state))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conversationID] = &memoryEntry{state: state, lastUsed: s.now()}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationID)
	return nil
}

// Sweep evicts entries unused for longer than maxIdle and returns how many
// were removed.
func (s *MemoryStore) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if entry.lastUsed.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", len(s.entries)).Msg("Swept idle checkpoints")
	}
	return removed
}

// Len returns the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }

func copyState(state agent.State) agent.State {
	state.Messages = append([]agent.Message(nil), state.Messages...)
	return state
}
