package registry

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/inaiurai/whitelist/internal/errs"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[Key]time.Time
}

// MemoryStore keeps entries in process memory. Keys are spread over
// independently locked shards, so writes to the same key are linearizable and
// writes to unrelated keys rarely contend.
type MemoryStore struct {
	shards [shardCount]*shard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[Key]time.Time)}
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) shardFor(k Key) *shard {
	h := xxhash.New()
	_, _ = h.WriteString(k.Region)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(k.UID)
	return s.shards[h.Sum64()%shardCount]
}

func (s *MemoryStore) Upsert(_ context.Context, p UpsertParams) (Record, error) {
	k := Key{UID: p.UID, Region: p.Region}
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	var current *time.Time
	if exp, ok := sh.entries[k]; ok {
		current = &exp
	}
	expiry := p.NextExpiry(current)
	sh.entries[k] = expiry
	return Record{UID: p.UID, Region: p.Region, ExpiresAt: expiry}, nil
}

func (s *MemoryStore) Delete(_ context.Context, uid, region string) (bool, error) {
	k := Key{UID: uid, Region: region}
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.entries[k]; !ok {
		return false, nil
	}
	delete(sh.entries, k)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, uid, region string) (Record, error) {
	k := Key{UID: uid, Region: region}
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	exp, ok := sh.entries[k]
	if !ok {
		return Record{}, errs.ErrNotFound
	}
	return Record{UID: uid, Region: region, ExpiresAt: exp}, nil
}

// List walks every shard; region "" matches all regions. Each entry is read
// under its shard lock, so no single record is ever torn.
func (s *MemoryStore) List(_ context.Context, region string) ([]Record, error) {
	return s.collect(func(k Key) bool { return region == "" || k.Region == region }), nil
}

func (s *MemoryStore) ListByUID(_ context.Context, uid string) ([]Record, error) {
	return s.collect(func(k Key) bool { return k.UID == uid }), nil
}

func (s *MemoryStore) collect(match func(Key) bool) []Record {
	var out []Record
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, exp := range sh.entries {
			if match(k) {
				out = append(out, Record{UID: k.UID, Region: k.Region, ExpiresAt: exp})
			}
		}
		sh.mu.RUnlock()
	}
	return out
}
