package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
)

const redisKeyPrefix = "legalbot:checkpoint:"

// RedisStore keeps checkpoints as JSON values with a sliding key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	limits Limits
}

// NewRedisStore connects to the redis server at url (redis://host:port/db).
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, limits Limits) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl, limits), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, limits Limits) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, limits: limits}
}

func (s *RedisStore) key(conversationID string) string {
	return redisKeyPrefix + conversationID
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) (agent.State, error) {
	if err := validateID(conversationID); err != nil {
		return agent.State{}, err
	}

	raw, err := s.client.Get(ctx, s.key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return agent.State{}, nil
	}
	if err != nil {
		return agent.State{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state agent.State
	if err := json.Unmarshal(raw, &state); err != nil {
		logger := tracing.LoggerFromContext(ctx, log.Logger)
		logger.Warn().Err(err).Str("conversationId", conversationID).Msg("Discarding corrupt checkpoint")
		return agent.State{}, nil
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, s.key(conversationID), s.ttl)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, conversationID string, state agent.State) error {
	if err := validateID(conversationID); err != nil {
		return err
	}
	raw, err := json.Marshal(s.limits.Apply(state))
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(conversationID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, s.key(conversationID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
