// Package keylock provides per-key exclusive locks with bounded waiting.
//
// A Set is the in-process counterpart of a row lock taken with
// SELECT ... FOR UPDATE: callers serialize on a key (an auction id) while
// unrelated keys proceed in parallel. Waiting is bounded by the caller's
// context, mirroring lock_timeout on the database side.
package keylock

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/floroz/auction-live/pkg/syncutils"
)

// DefaultShards is used when New is called with a non-positive shard count.
const DefaultShards = 64

// Set hands out one exclusive lock per key. Keys are spread over shards so
// that bookkeeping for unrelated keys does not contend on a single mutex.
type Set struct {
	shards []*shard
}

type shard struct {
	mu    syncutils.Mutex
	locks map[string]*entry
}

// entry is reference counted so it can be dropped once nobody holds or
// waits for it.
type entry struct {
	sem  chan struct{}
	refs int
}

// New creates a Set with the given number of shards.
func New(shards int) *Set {
	if shards <= 0 {
		shards = DefaultShards
	}
	s := &Set{shards: make([]*shard, shards)}
	for i := range s.shards {
		s.shards[i] = &shard{locks: make(map[string]*entry)}
	}
	return s
}

// Lock blocks until the lock for key is held or ctx is done. On success it
// returns an unlock function that is safe to call more than once.
func (s *Set) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sh := s.shardFor(key)
	e := sh.retain(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		sh.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			sh.release(key, e)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (s *Set) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.locks)
		sh.mu.Unlock()
	}
	return n
}

func (s *Set) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (sh *shard) retain(key string) *entry {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		sh.locks[key] = e
	}
	e.refs++
	return e
}

func (sh *shard) release(key string, e *entry) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(sh.locks, key)
	}
}
