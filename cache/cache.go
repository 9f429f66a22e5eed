// Package cache implements the bounded block cache described in
// spec.md §4.6: a fixed-capacity LRU of decoded block bytes, keyed by
// block_id, with single-flight loading so that concurrent misses on
// the same block_id trigger exactly one fetch+decode.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/maurocanuto/mempack/errors"
	"github.com/maurocanuto/mempack/sync/loadingcache"
	"github.com/maurocanuto/mempack/traverse"
)

// Loader fetches and decodes block_id's payload. It is called at most
// once per block_id at a time, even under concurrent Get calls.
type Loader func(ctx context.Context, blockID uint32) ([]byte, error)

// Cache is a bounded, concurrency-safe cache of decoded block bytes.
type Cache struct {
	load        Loader
	ioBatchSize int
	prefetch    bool
	numBlocks   int

	mu      sync.Mutex
	lru     *lru.Cache[uint32, []byte]
	pending loadingcache.Map

	hits   uint64
	misses uint64
}

// New creates a Cache holding up to capacity decoded blocks, evicting
// least-recently-used entries once full. capacity <= 0 disables
// caching: every Get calls load directly.
//
// ioBatchSize bounds how many blocks GetBatch has in flight at once
// (spec.md §4.6's io_batch_size); ioBatchSize <= 0 means unbounded. If
// prefetch is true, each GetBatch round also warms the block
// immediately following the round's highest requested block_id, on
// the assumption that a query's next oversample round is likely to
// want it; numBlocks bounds prefetch so it never requests past the
// end of the pack.
func New(capacity int, load Loader, ioBatchSize int, prefetch bool, numBlocks int) (*Cache, error) {
	c := &Cache{load: load, ioBatchSize: ioBatchSize, prefetch: prefetch, numBlocks: numBlocks}
	if capacity > 0 {
		l, err := lru.New[uint32, []byte](capacity)
		if err != nil {
			return nil, errors.E(errors.InvalidConfig, err, "cache: invalid capacity")
		}
		c.lru = l
	}
	return c, nil
}

// Get returns block_id's decoded bytes, loading them on a cache miss.
// Concurrent Get calls for the same block_id share a single load.
func (c *Cache) Get(ctx context.Context, blockID uint32) ([]byte, error) {
	if c.lru == nil {
		return c.load(ctx, blockID)
	}

	c.mu.Lock()
	if v, ok := c.lru.Get(blockID); ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v := c.pending.GetOrCreate(blockID)
	var data []byte
	err := v.GetOrLoad(ctx, &data, func(ctx context.Context, opts *loadingcache.LoadOpts) error {
		loaded, err := c.load(ctx, blockID)
		if err != nil {
			return err
		}
		data = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(blockID, data)
	c.mu.Unlock()
	return data, nil
}

// GetBatch fetches multiple block_ids, returning results and, per
// index, any error loading that particular block_id. A single block's
// failure never aborts the rest of the batch — callers that need to
// tolerate per-block corruption (spec.md §7's ChunkUnavailable policy)
// inspect errs themselves; callers that want fail-fast semantics can
// return the first non-nil entry.
//
// Requests are grouped into rounds of at most ioBatchSize blocks
// (unbounded if ioBatchSize <= 0), each round fanned out concurrently
// with traverse.Parallel. When prefetch is enabled, the block
// following each round's highest requested block_id is warmed
// speculatively in the background; its result and any error are
// discarded.
func (c *Cache) GetBatch(ctx context.Context, blockIDs []uint32) ([][]byte, []error) {
	data := make([][]byte, len(blockIDs))
	errs := make([]error, len(blockIDs))
	if len(blockIDs) == 0 {
		return data, errs
	}

	batch := c.ioBatchSize
	if batch <= 0 {
		batch = len(blockIDs)
	}
	for start := 0; start < len(blockIDs); start += batch {
		end := start + batch
		if end > len(blockIDs) {
			end = len(blockIDs)
		}
		n := end - start
		// Errors are captured per-index, never returned from the op,
		// so traverse never aborts the round early.
		_ = traverse.Parallel(n).Do(func(i int) error {
			idx := start + i
			d, err := c.Get(ctx, blockIDs[idx])
			data[idx] = d
			errs[idx] = err
			return nil
		})
		if c.prefetch {
			c.prefetchNext(blockIDs[start:end])
		}
	}
	return data, errs
}

// prefetchNext warms the block immediately after run's highest
// block_id, skipping it if it's already cached, out of range, or
// caching is disabled.
func (c *Cache) prefetchNext(run []uint32) {
	if c.lru == nil {
		return
	}
	next := run[0]
	for _, id := range run {
		if id > next {
			next = id
		}
	}
	next++
	if c.numBlocks > 0 && int(next) >= c.numBlocks {
		return
	}
	c.mu.Lock()
	_, cached := c.lru.Get(next)
	c.mu.Unlock()
	if cached {
		return
	}
	go func() {
		_, _ = c.Get(context.Background(), next)
	}()
}

// Stats reports cumulative hit/miss counts.
type Stats struct {
	Hits, Misses uint64
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

// Len reports the number of blocks currently cached.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge evicts every cached block.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Purge()
	}
	c.pending.DeleteAll()
}
