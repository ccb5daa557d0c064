// Package redis stores sync state in Redis so several searchsync processes
// can share one watermark.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "searchsync:sync_state:"

// Hash fields.
const (
	fieldWatermark = "watermark"
	fieldMode      = "mode"
	fieldSynced    = "synced"
	fieldFailed    = "failed"
	fieldUpdatedAt = "updated_at"
)

// Ensure SyncStateStore implements the interface.
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

// SyncStateStore keeps each sync state in a Redis hash.
type SyncStateStore struct {
	client goredis.UniversalClient
	prefix string
}

// Options configures the store.
type Options struct {
	// Addr is the Redis address (host:port).
	Addr string

	// Password authenticates the connection.
	Password string

	// DB selects the Redis database.
	DB int

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*SyncStateStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, prefix string) *SyncStateStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SyncStateStore{client: client, prefix: prefix}
}

func (s *SyncStateStore) key(k string) string {
	return s.prefix + k
}

// Save stores or updates sync state.
func (s *SyncStateStore) Save(ctx context.Context, state domain.SyncState) error {
	if state.Key == "" {
		return fmt.Errorf("%w: sync state key is empty", domain.ErrInvalidInput)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	watermark := ""
	if !state.Watermark.IsZero() {
		watermark = state.Watermark.UTC().Format(time.RFC3339Nano)
	}

	err := s.client.HSet(ctx, s.key(state.Key), map[string]any{
		fieldWatermark: watermark,
		fieldMode:      string(state.Mode),
		fieldSynced:    state.Synced,
		fieldFailed:    state.Failed,
		fieldUpdatedAt: state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// Get retrieves sync state by key.
func (s *SyncStateStore) Get(ctx context.Context, key string) (*domain.SyncState, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading sync state: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	state := domain.SyncState{Key: key, Mode: domain.SyncMode(fields[fieldMode])}
	if state.Watermark, err = parseTime(fields[fieldWatermark]); err != nil {
		return nil, fmt.Errorf("parsing watermark: %w", err)
	}
	if state.UpdatedAt, err = parseTime(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if state.Synced, err = parseInt(fields[fieldSynced]); err != nil {
		return nil, fmt.Errorf("parsing synced: %w", err)
	}
	if state.Failed, err = parseInt(fields[fieldFailed]); err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	return &state, nil
}

// Delete removes sync state by key.
func (s *SyncStateStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("deleting sync state: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *SyncStateStore) Close() error {
	return s.client.Close()
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
