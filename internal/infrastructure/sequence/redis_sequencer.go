package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/logiserv/billing/internal/domain/invoicing"
)

// SequenceSeeder returns how many invoices a tenant already has for a month.
// It seeds the Redis counter the first time a tenant/month key is touched so
// restarts and cold caches never reissue a sequence.
type SequenceSeeder interface {
	CountForMonth(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int64, error)
}

// RedisSequencer allocates invoice sequences with an atomic Redis INCR per
// tenant/month key. Suitable for distributed deployments where multiple
// instances generate invoices concurrently.
type RedisSequencer struct {
	client    *redis.Client
	seeder    SequenceSeeder
	keyPrefix string
	keyTTL    time.Duration
}

// RedisSequencerOption is a functional option for configuring the sequencer
type RedisSequencerOption func(*RedisSequencer)

// WithKeyPrefix overrides the default Redis key prefix
func WithKeyPrefix(prefix string) RedisSequencerOption {
	return func(s *RedisSequencer) {
		s.keyPrefix = prefix
	}
}

// WithKeyTTL sets how long a tenant/month counter key lives after last use.
// Expired keys are reseeded from the invoice store on next use.
func WithKeyTTL(ttl time.Duration) RedisSequencerOption {
	return func(s *RedisSequencer) {
		s.keyTTL = ttl
	}
}

// NewRedisSequencer creates a Redis-backed invoice sequencer
func NewRedisSequencer(client *redis.Client, seeder SequenceSeeder, opts ...RedisSequencerOption) *RedisSequencer {
	s := &RedisSequencer{
		client:    client,
		seeder:    seeder,
		keyPrefix: "billing:invseq:",
		keyTTL:    90 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextSequence returns the next invoice sequence for the tenant and month
func (s *RedisSequencer) NextSequence(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int, error) {
	key := s.key(tenantID, year, month)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check sequence key: %w", err)
	}
	if exists == 0 {
		if err := s.seed(ctx, key, tenantID, year, month); err != nil {
			return 0, err
		}
	}

	seq, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	if s.keyTTL > 0 {
		_ = s.client.Expire(ctx, key, s.keyTTL).Err()
	}
	return int(seq), nil
}

// seed initializes the counter from the invoice store. SetNX keeps the seed
// atomic when several instances race on a cold key; the loser's count is
// discarded.
func (s *RedisSequencer) seed(ctx context.Context, key string, tenantID uuid.UUID, year int, month time.Month) error {
	count, err := s.seeder.CountForMonth(ctx, tenantID, year, month)
	if err != nil {
		return fmt.Errorf("failed to seed sequence counter: %w", err)
	}
	if err := s.client.SetNX(ctx, key, count, s.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set sequence counter: %w", err)
	}
	return nil
}

func (s *RedisSequencer) key(tenantID uuid.UUID, year int, month time.Month) string {
	return fmt.Sprintf("%s%s:%04d%02d", s.keyPrefix, tenantID, year, int(month))
}

var _ invoicing.Sequencer = (*RedisSequencer)(nil)
