package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	appdetections "github.com/bryanwahyu/wildlife-dashboard/internal/application/detections"
)

// Client is the subset of go-redis methods the store uses.
type Client interface {
	Ping(ctx context.Context) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// SnapshotStore shares the record cache between dashboard replicas. Assets
// and fetch time are written as one JSON value so they never diverge.
type SnapshotStore struct {
	client Client
	prefix string
}

// New connects and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: ping failed: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

func NewWithClient(client Client, prefix string) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix}
}

func (s *SnapshotStore) Load(ctx context.Context, key string) (appdetections.Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return appdetections.Snapshot{}, false, nil
	}
	if err != nil {
		return appdetections.Snapshot{}, false, err
	}
	var snap appdetections.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return appdetections.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, true, nil
}

// Save writes the snapshot. A zero ttl keeps it until the next Save or Delete.
func (s *SnapshotStore) Save(ctx context.Context, key string, snap appdetections.Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefixed(key), raw, ttl).Err()
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefixed(key)).Err()
}

// Check implements the health checker.
func (s *SnapshotStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SnapshotStore) Close() error {
	return s.client.Close()
}

func (s *SnapshotStore) prefixed(key string) string {
	return s.prefix + "records:" + key
}
