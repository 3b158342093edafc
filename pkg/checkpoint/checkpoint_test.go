package checkpoint

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
)

func newRedisStore(t *testing.T, ttl time.Duration, limits Limits) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), ttl, limits)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func testStores(t *testing.T, limits Limits) map[string]Store {
	redisStore, _ := newRedisStore(t, time.Hour, limits)
	return map[string]Store{
		"memory": NewMemoryStore(limits),
		"redis":  redisStore,
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t, Limits{MaxPDFContext: 10, MaxSummary: 4}) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Run("should return an empty state for unknown conversations", func(t *testing.T) {
				state, err := store.Load(ctx, "missing")
				require.NoError(t, err)
				assert.Empty(t, state.Messages)
				assert.Empty(t, state.PDFContext)
			})

			t.Run("should round trip messages", func(t *testing.T) {
				state := agent.State{Messages: []agent.Message{
					{Role: agent.RoleUser, Content: "ly hôn"},
					{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{ID: "c1", Name: "legal_assistant", Arguments: `{"query":"ly hôn"}`}}},
				}}
				require.NoError(t, store.Save(ctx, "conv-1", state))

				loaded, err := store.Load(ctx, "conv-1")
				require.NoError(t, err)
				assert.Equal(t, state.Messages, loaded.Messages)
			})

			t.Run("should keep the tail of capped fields", func(t *testing.T) {
				require.NoError(t, store.Save(ctx, "conv-2", agent.State{PDFContext: "0123456789abc", Summary: "tóm tắt"}))
				loaded, err := store.Load(ctx, "conv-2")
				require.NoError(t, err)
				assert.Equal(t, "3456789abc", loaded.PDFContext)
				assert.Equal(t, " tắt", loaded.Summary)
			})

			t.Run("should delete checkpoints", func(t *testing.T) {
				require.NoError(t, store.Save(ctx, "conv-3", agent.State{Summary: "x"}))
				require.NoError(t, store.Delete(ctx, "conv-3"))
				loaded, err := store.Load(ctx, "conv-3")
				require.NoError(t, err)
				assert.Empty(t, loaded.Summary)
			})

			t.Run("should reject empty ids", func(t *testing.T) {
				assert.Error(t, store.Save(ctx, "", agent.State{}))
				_, err := store.Load(ctx, "")
				assert.Error(t, err)
			})
		})
	}
}

func TestAppendPDFContext(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t, Limits{}) {
		store := store
		t.Run(name+" should keep documents in upload order", func(t *testing.T) {
			require.NoError(t, AppendPDFContext(ctx, store, "conv", "a.pdf", "HỢP ĐỒNG A"))
			require.NoError(t, AppendPDFContext(ctx, store, "conv", "b.pdf", "HỢP ĐỒNG B"))

			state, err := store.Load(ctx, "conv")
			require.NoError(t, err)
			first := strings.Index(state.PDFContext, "--- DOCUMENT: a.pdf ---\nHỢP ĐỒNG A")
			second := strings.Index(state.PDFContext, "--- DOCUMENT: b.pdf ---\nHỢP ĐỒNG B")
			assert.GreaterOrEqual(t, first, 0)
			assert.Greater(t, second, first)
		})
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(Limits{})
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "old", agent.State{}))
	now = now.Add(2 * time.Hour)
	require.NoError(t, store.Save(ctx, "fresh", agent.State{}))

	t.Run("should evict only idle entries", func(t *testing.T) {
		assert.Equal(t, 1, store.Sweep(time.Hour))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("should ignore non-positive idle limits", func(t *testing.T) {
		assert.Equal(t, 0, store.Sweep(0))
	})
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute, Limits{})

	require.NoError(t, store.Save(ctx, "conv", agent.State{Summary: "x"}))
	assert.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+"conv"))

	t.Run("should expire keys after the ttl", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		state, err := store.Load(ctx, "conv")
		require.NoError(t, err)
		assert.Empty(t, state.Summary)
	})

	t.Run("should discard corrupt values", func(t *testing.T) {
		require.NoError(t, mr.Set(redisKeyPrefix+"bad", "{not json"))
		state, err := store.Load(ctx, "bad")
		require.NoError(t, err)
		assert.Empty(t, state.Messages)
	})

	t.Run("should fail on an unreachable server", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
		broken := NewRedisStoreWithClient(client, time.Minute, Limits{})
		defer broken.Close()
		_, err := broken.Load(ctx, "conv")
		assert.Error(t, err)
	})
}
