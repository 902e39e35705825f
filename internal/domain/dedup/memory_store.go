package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

const shardCount = 16

// MemoryStore is an in-process Store sharded by the first hex digit of the hash so sources
// writing different fingerprints rarely contend on the same lock.
type MemoryStore struct {
	shards [shardCount]memoryShard
}

type memoryShard struct {
	mu  sync.Mutex
	fps map[string]model.JobFingerprint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].fps = make(map[string]model.JobFingerprint)
	}
	return s
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, hash string, observedAt time.Time) (model.JobFingerprint, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.JobFingerprint{}, false, err
	}

	sh := s.shard(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	fp, ok := sh.fps[hash]
	if !ok {
		fp = model.JobFingerprint{
			Hash:        hash,
			FirstSeenAt: observedAt,
			LastSeenAt:  observedAt,
			RepostCount: 1,
		}
		sh.fps[hash] = fp
		return fp, true, nil
	}

	fp.RepostCount++
	if observedAt.After(fp.LastSeenAt) {
		fp.LastSeenAt = observedAt
	}
	if observedAt.Before(fp.FirstSeenAt) {
		fp.FirstSeenAt = observedAt
	}
	sh.fps[hash] = fp
	return fp, false, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, hash string) (model.JobFingerprint, bool, error) {
	sh := s.shard(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fp, ok := sh.fps[hash]
	return fp, ok, nil
}

// Len returns the number of stored fingerprints.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.fps)
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) shard(hash string) *memoryShard {
	return &s.shards[shardIndex(hash)]
}

func shardIndex(hash string) int {
	if hash == "" {
		return 0
	}
	c := hash[0]
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c) % shardCount
	}
}
