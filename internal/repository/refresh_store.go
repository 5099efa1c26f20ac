package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/noticeboard/internal/domain"
)

const refreshKeyPrefix = "refresh:"

// RefreshStore is the persisted set of currently-valid refresh tokens, keyed
// by token value. A token absent from the store is revoked regardless of its
// cryptographic validity.
type RefreshStore interface {
	Save(ctx context.Context, record domain.RefreshRecord, ttl time.Duration) error
	Exists(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
	Rotate(ctx context.Context, oldToken string, record domain.RefreshRecord, ttl time.Duration) error
}

type redisRefreshStore struct {
	client *redis.Client
}

// NewRefreshStore returns a Redis-backed implementation. The key TTL mirrors
// the token TTL, so naturally expired records vanish without a sweeper.
func NewRefreshStore(client *redis.Client) RefreshStore {
	return &redisRefreshStore{client: client}
}

func (s *redisRefreshStore) Save(ctx context.Context, record domain.RefreshRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal refresh record: %w", err)
	}
	return s.client.Set(ctx, refreshKey(record.Token), payload, ttl).Err()
}

func (s *redisRefreshStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, refreshKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete is a no-op for unknown tokens, which keeps logout idempotent.
func (s *redisRefreshStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, refreshKey(token)).Err()
}

// Rotate removes the consumed token and inserts its replacement in one
// transactional pipeline, so the old token is unusable the instant the new
// one exists.
func (s *redisRefreshStore) Rotate(ctx context.Context, oldToken string, record domain.RefreshRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal refresh record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, refreshKey(oldToken))
	pipe.Set(ctx, refreshKey(record.Token), payload, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func refreshKey(token string) string {
	return refreshKeyPrefix + token
}
