package conversation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "legalbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	conv, err := store.Create(ctx, "user-1", "Thủ tục đăng ký kết hôn")
	require.NoError(t, err)

	t.Run("should create and get conversations", func(t *testing.T) {
		assert.NotEmpty(t, conv.ID)
		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, "Thủ tục đăng ký kết hôn", got.Title)
	})

	t.Run("should report ownership", func(t *testing.T) {
		owned, err := store.Owns(ctx, conv.ID, "user-1")
		require.NoError(t, err)
		assert.True(t, owned)

		owned, err = store.Owns(ctx, conv.ID, "user-2")
		require.NoError(t, err)
		assert.False(t, owned)

		owned, err = store.Owns(ctx, "missing", "user-1")
		require.NoError(t, err)
		assert.False(t, owned)
	})

	t.Run("should return the most recent history oldest first", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			require.NoError(t, store.Append(ctx, conv.ID,
				NewMessage{Role: "user", Content: fmt.Sprintf("q%d", i)},
				NewMessage{Role: "assistant", Content: fmt.Sprintf("a%d", i)},
			))
		}

		history, err := store.History(ctx, conv.ID, 20)
		require.NoError(t, err)
		require.Len(t, history, 20)
		assert.Equal(t, "q2", history[0].Content)
		assert.Equal(t, "a11", history[19].Content)
		for i := 1; i < len(history); i++ {
			assert.Less(t, history[i-1].Seq, history[i].Seq)
		}
	})

	t.Run("should return empty history for new conversations", func(t *testing.T) {
		other, err := store.Create(ctx, "user-1", "khác")
		require.NoError(t, err)
		history, err := store.History(ctx, other.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("should touch updated_at", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		store.now = func() time.Time { return later }
		defer func() { store.now = time.Now }()

		require.NoError(t, store.Touch(ctx, conv.ID))
		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, later.UTC().UnixMilli(), got.UpdatedAt.UnixMilli())

		assert.ErrorIs(t, store.Touch(ctx, "missing"), ErrNotFound)
	})

	t.Run("should delete messages only for the owner", func(t *testing.T) {
		history, err := store.History(ctx, conv.ID, 1)
		require.NoError(t, err)
		require.Len(t, history, 1)
		id := history[0].ID

		assert.ErrorIs(t, store.DeleteMessage(ctx, id, "user-2"), ErrAccessDenied)
		assert.ErrorIs(t, store.DeleteMessage(ctx, "missing", "user-1"), ErrNotFound)
		require.NoError(t, store.DeleteMessage(ctx, id, "user-1"))
		assert.ErrorIs(t, store.DeleteMessage(ctx, id, "user-1"), ErrNotFound)
	})

	t.Run("should return not found for unknown conversations", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should reject empty user ids", func(t *testing.T) {
		_, err := store.Create(ctx, "", "x")
		assert.Error(t, err)
	})
}

func TestTitle(t *testing.T) {
	t.Run("should keep the first runes", func(t *testing.T) {
		assert.Equal(t, "Thủ tục", Title("  Thủ tục đăng ký kết hôn", 7))
		assert.Equal(t, "ngắn", Title("ngắn", 50))
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("LEGALBOT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LEGALBOT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	database := fmt.Sprintf("legalbot_test_%d", time.Now().UnixNano())
	store, err := OpenMongo(ctx, uri, database)
	require.NoError(t, err)
	defer func() {
		_ = store.client.Database(database).Drop(ctx)
		store.Close()
	}()

	conv, err := store.Create(ctx, "user-1", "ly hôn")
	require.NoError(t, err)

	t.Run("should append and read history in order", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, conv.ID,
			NewMessage{Role: "user", Content: "q"},
			NewMessage{Role: "assistant", Content: "a"},
		))
		history, err := store.History(ctx, conv.ID, 20)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "q", history[0].Content)
		assert.Equal(t, "a", history[1].Content)
	})

	t.Run("should enforce ownership on delete", func(t *testing.T) {
		history, err := store.History(ctx, conv.ID, 1)
		require.NoError(t, err)
		assert.ErrorIs(t, store.DeleteMessage(ctx, history[0].ID, "user-2"), ErrAccessDenied)
		require.NoError(t, store.DeleteMessage(ctx, history[0].ID, "user-1"))
	})

	t.Run("should touch and get", func(t *testing.T) {
		require.NoError(t, store.Touch(ctx, conv.ID))
		_, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.ErrorIs(t, store.Touch(ctx, "missing"), ErrNotFound)
	})
}

func TestMongoSequence(t *testing.T) {
	t.Run("should stay monotonic when the clock stalls", func(t *testing.T) {
		fixed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
		s := &MongoStore{now: func() time.Time { return fixed }}
		first := s.nextSeq()
		second := s.nextSeq()
		assert.Equal(t, fixed.UnixNano(), first)
		assert.Equal(t, first+1, second)
	})
}
