package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-job-ingest/internal/domain/dedup"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// Hash fields of a fingerprint key. Times are Unix milliseconds.
const (
	fpFieldFirstSeen   = "first_seen"
	fpFieldLastSeen    = "last_seen"
	fpFieldRepostCount = "repost_count"
)

// RedisFingerprintStore implements dedup.Store on Redis so replicas share one fingerprint set.
// Each fingerprint is a hash updated in a MULTI/EXEC block.
type RedisFingerprintStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ dedup.Store = (*RedisFingerprintStore)(nil)

// RedisFingerprintStoreOptions configures a RedisFingerprintStore.
type RedisFingerprintStoreOptions struct {
	Client    redis.UniversalClient // Required
	KeyPrefix string                // Optional: namespaces keys
	TTL       time.Duration         // Optional: zero keeps fingerprints forever
}

// NewRedisFingerprintStore creates a new RedisFingerprintStore.
func NewRedisFingerprintStore(opts RedisFingerprintStoreOptions) (*RedisFingerprintStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisFingerprintStore{client: opts.Client, prefix: opts.KeyPrefix, ttl: opts.TTL}, nil
}

func (s *RedisFingerprintStore) key(hash string) string {
	return s.prefix + hash
}

// Upsert implements dedup.Store. HSETNX on first_seen decides which caller created the
// fingerprint; every caller bumps repost_count, so the creator always sees a count of 1.
func (s *RedisFingerprintStore) Upsert(
	ctx context.Context,
	hash string,
	observedAt time.Time,
) (model.JobFingerprint, bool, error) {
	if hash == "" {
		return model.JobFingerprint{}, false, ErrEmptyFingerprint
	}
	key := s.key(hash)
	ms := observedAt.UnixMilli()

	var (
		created *redis.BoolCmd
		count   *redis.IntCmd
		fields  *redis.SliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.HSetNX(ctx, key, fpFieldFirstSeen, ms)
		count = pipe.HIncrBy(ctx, key, fpFieldRepostCount, 1)
		pipe.HSet(ctx, key, fpFieldLastSeen, ms)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		fields = pipe.HMGet(ctx, key, fpFieldFirstSeen)
		return nil
	})
	if err != nil {
		return model.JobFingerprint{}, false, fmt.Errorf("redis upsert fingerprint: %w", err)
	}

	firstSeen, err := parseMillis(fields.Val()[0])
	if err != nil {
		return model.JobFingerprint{}, false, err
	}
	return model.JobFingerprint{
		Hash:        hash,
		FirstSeenAt: firstSeen,
		LastSeenAt:  time.UnixMilli(ms).UTC(),
		RepostCount: int(count.Val()),
	}, created.Val(), nil
}

// Get implements dedup.Store.
func (s *RedisFingerprintStore) Get(ctx context.Context, hash string) (model.JobFingerprint, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.key(hash)).Result()
	if err != nil {
		return model.JobFingerprint{}, false, fmt.Errorf("redis get fingerprint: %w", err)
	}
	if len(vals) == 0 {
		return model.JobFingerprint{}, false, nil
	}

	fp := model.JobFingerprint{Hash: hash}
	if fp.FirstSeenAt, err = parseMillis(vals[fpFieldFirstSeen]); err != nil {
		return model.JobFingerprint{}, false, err
	}
	if fp.LastSeenAt, err = parseMillis(vals[fpFieldLastSeen]); err != nil {
		return model.JobFingerprint{}, false, err
	}
	if fp.RepostCount, err = strconv.Atoi(vals[fpFieldRepostCount]); err != nil {
		return model.JobFingerprint{}, false, fmt.Errorf("parse repost_count: %w", err)
	}
	return fp, true, nil
}

func parseMillis(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected timestamp value %v", v)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
