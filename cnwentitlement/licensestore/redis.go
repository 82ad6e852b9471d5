package licensestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "cnw:entitlement:license:"

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix. Default: "cnw:entitlement:license:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// RedisStore implements Store using one Redis string key per workspace.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis-backed license store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(workspaceID string) string {
	return s.prefix + workspaceID
}

func (s *RedisStore) Save(ctx context.Context, workspaceID, ciphertext string) error {
	raw, err := json.Marshal(Record{
		WorkspaceID: workspaceID,
		Ciphertext:  ciphertext,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(workspaceID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save license: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, workspaceID string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.key(workspaceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load license: %w", err)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Delete(ctx context.Context, workspaceID string) error {
	if err := s.client.Del(ctx, s.key(workspaceID)).Err(); err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	return nil
}

func (s *RedisStore) Close(_ context.Context) error {
	return nil // user manages the redis client lifecycle
}
