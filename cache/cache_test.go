package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/cache"
)

func TestGetCachesResult(t *testing.T) {
	var loads int32
	c, err := cache.New(4, func(ctx context.Context, blockID uint32) ([]byte, error) {
		atomic.AddInt32(&loads, 1)
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		data, err := c.Get(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, []byte{7}, data)
	}
	assert.EqualValues(t, 1, loads)
	assert.Equal(t, cache.Stats{Hits: 2, Misses: 1}, c.Stats())
}

func TestEvictionBoundsSize(t *testing.T) {
	c, err := cache.New(2, func(ctx context.Context, blockID uint32) ([]byte, error) {
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)

	for i := uint32(0); i < 5; i++ {
		_, err := c.Get(context.Background(), i)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(), 2)
}

func TestGetBatchOrdersResults(t *testing.T) {
	c, err := cache.New(16, func(ctx context.Context, blockID uint32) ([]byte, error) {
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)

	ids := []uint32{5, 1, 3, 2}
	out, errs := c.GetBatch(context.Background(), ids)
	for i, id := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte{byte(id)}, out[i])
	}
}

func TestGetBatchIsolatesPerBlockErrors(t *testing.T) {
	c, err := cache.New(16, func(ctx context.Context, blockID uint32) ([]byte, error) {
		if blockID == 2 {
			return nil, errors.New("block 2 is poisoned")
		}
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)

	ids := []uint32{1, 2, 3}
	out, errs := c.GetBatch(context.Background(), ids)
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.NoError(t, errs[2])
	assert.Equal(t, []byte{1}, out[0])
	assert.Equal(t, []byte{3}, out[2])
}

func TestGetBatchBoundsConcurrencyByIOBatchSize(t *testing.T) {
	var inFlight, maxInFlight int32
	block := make(chan struct{})
	unblockOnce := sync.Once{}

	c, err := cache.New(16, func(ctx context.Context, blockID uint32) ([]byte, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		<-block
		atomic.AddInt32(&inFlight, -1)
		return []byte{byte(blockID)}, nil
	}, 2, false, 0)
	require.NoError(t, err)

	ids := []uint32{0, 1, 2, 3, 4, 5}
	done := make(chan struct{})
	go func() {
		_, _ = c.GetBatch(context.Background(), ids)
		close(done)
	}()

	// Give the first round time to saturate its io_batch_size before
	// releasing it; a second round should never start concurrently
	// with the first.
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&inFlight), int32(2))
	unblockOnce.Do(func() { close(block) })
	<-done
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestGetBatchPrefetchesFollowingBlock(t *testing.T) {
	var loaded sync.Map
	loadedCh := make(chan uint32, 16)

	c, err := cache.New(16, func(ctx context.Context, blockID uint32) ([]byte, error) {
		if _, dup := loaded.LoadOrStore(blockID, true); !dup {
			loadedCh <- blockID
		}
		return []byte{byte(blockID)}, nil
	}, 8, true, 10)
	require.NoError(t, err)

	_, errs := c.GetBatch(context.Background(), []uint32{3})
	require.NoError(t, errs[0])

	var sawPrefetch bool
	deadline := time.After(time.Second)
	for !sawPrefetch {
		select {
		case id := <-loadedCh:
			if id == 4 {
				sawPrefetch = true
			}
		case <-deadline:
			t.Fatal("block 4 was never prefetched after requesting block 3")
		}
	}
}

func TestDisabledCacheAlwaysLoads(t *testing.T) {
	var loads int32
	c, err := cache.New(0, func(ctx context.Context, blockID uint32) ([]byte, error) {
		atomic.AddInt32(&loads, 1)
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), 1)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, loads)
}

func TestPurge(t *testing.T) {
	c, err := cache.New(4, func(ctx context.Context, blockID uint32) ([]byte, error) {
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

// TestConcurrentMissesCoalesceIntoOneLoad verifies the cache's named
// single-flight property (spec.md §4.6): many concurrent Get calls on
// the same cold block_id trigger exactly one underlying load/decode,
// not one per caller.
func TestConcurrentMissesCoalesceIntoOneLoad(t *testing.T) {
	var loads int32
	start := make(chan struct{})
	c, err := cache.New(4, func(ctx context.Context, blockID uint32) ([]byte, error) {
		atomic.AddInt32(&loads, 1)
		<-start
		return []byte{byte(blockID)}, nil
	}, 0, false, 0)
	require.NoError(t, err)

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			data, err := c.Get(context.Background(), 9)
			assert.NoError(t, err)
			results[i] = data
		}(i)
	}
	// Let every goroutine register as a waiter on the same pending
	// load before the load completes.
	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, loads)
	for _, r := range results {
		assert.Equal(t, []byte{9}, r)
	}
}
