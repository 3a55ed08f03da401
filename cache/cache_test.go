package cache

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/infinivision/pagecache/constant"
	"github.com/infinivision/pagecache/errmsg"
	"github.com/infinivision/pagecache/memory"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T, maxSize, cacheSize int64, mod func(*Config)) *cache {
	t.Helper()
	mgr, err := memory.New(maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	cfg := DefaultConfig()
	cfg.CacheSize = cacheSize
	cfg.LogWriter = io.Discard
	if mod != nil {
		mod(&cfg)
	}
	c, err := New(mgr, cfg)
	require.NoError(t, err)
	return c
}

func TestNewTooSmall(t *testing.T) {
	mgr, err := memory.New(1 << 20)
	require.NoError(t, err)
	defer mgr.Close()
	cfg := DefaultConfig()
	cfg.CacheSize = constant.MinCacheSize - 1
	_, err = New(mgr, cfg)
	require.Equal(t, errmsg.CacheTooSmall, err)
}

func TestSearchInvalidOffset(t *testing.T) {
	c := testCache(t, 1<<20, constant.MinCacheSize, nil)
	_, _, err := c.Search(5)
	require.Equal(t, errmsg.InvalidOffset, err)
	_, _, err = c.Search(-constant.PageSize)
	require.Equal(t, errmsg.InvalidOffset, err)
}

// hit after miss: the second lookup lands on the same physical page
// with no eviction and an incremented hit count.
func TestHitAfterMiss(t *testing.T) {
	c := testCache(t, 1<<24, constant.MinCacheSize, nil)
	pg, old, err := c.Search(0)
	require.NoError(t, err)
	require.Equal(t, constant.Unassigned, old)
	require.False(t, pg.IsDataReady())
	require.Equal(t, 1, pg.Hits())
	pg.SetDataReady(true)
	pg.Release()

	again, old, err := c.Search(0)
	require.NoError(t, err)
	require.Equal(t, constant.Unassigned, old)
	require.Same(t, pg, again)
	require.True(t, again.IsDataReady())
	require.Equal(t, 2, again.Hits())
	again.Release()
}

// in-cell eviction under the frequency policy: the one offset that was
// not hit again is the minimum and gets displaced.
func TestFrequencyEviction(t *testing.T) {
	c := testCache(t, constant.MinCacheSize, constant.MinCacheSize, func(cfg *Config) {
		cfg.Shadow = ShadowNone
	})
	offs := cellOffsets(c, constant.CellSize+1)
	for _, off := range offs[:constant.CellSize] {
		search(t, c, off).Release()
	}
	for _, off := range offs[1:constant.CellSize] { // every offset but the first gets rehit
		search(t, c, off).Release()
	}
	pg, old, err := c.Search(offs[constant.CellSize])
	require.NoError(t, err)
	require.Equal(t, offs[0], old)
	pg.Release()
}

// shadow seed: an offset evicted with hits recorded comes back with
// its prior frequency plus the admitting access.
func TestShadowSeed(t *testing.T) {
	c := testCache(t, constant.MinCacheSize, constant.MinCacheSize, nil)
	offs := cellOffsets(c, constant.CellSize+1)
	for _, off := range offs[:constant.CellSize] {
		search(t, c, off).Release()
	}
	for _, off := range offs[1:constant.CellSize] {
		search(t, c, off).Release()
	}
	pg, old, err := c.Search(offs[constant.CellSize]) // displaces offs[0] with hits=1
	require.NoError(t, err)
	require.Equal(t, offs[0], old)
	pg.Release()

	back, old, err := c.Search(offs[0]) // displaces the newcomer, seeds from the shadow
	require.NoError(t, err)
	require.Equal(t, offs[constant.CellSize], old)
	require.Equal(t, 2, back.Hits()) // seeded 1 + the admitting hit
	back.Release()
}

// split expansion: an overflowing cell triggers growth, the split
// pointer advances, and routing for rehashed offsets follows.
func TestSplitExpansion(t *testing.T) {
	c := testCache(t, 1<<24, 2*constant.MinCacheSize, func(cfg *Config) {
		cfg.Shadow = ShadowNone
	})
	require.Equal(t, int64(2), c.Size())
	offs := cellOffsets(c, constant.CellSize+1)
	for _, off := range offs[:constant.CellSize] {
		search(t, c, off).Release()
	}
	for _, off := range offs[:constant.CellSize] {
		search(t, c, off).Release()
	}
	pg, old, err := c.Search(offs[constant.CellSize]) // every victim is warm, so the table grows
	require.NoError(t, err)
	require.Equal(t, constant.Unassigned, old) // rehash vacated slots in cell 0
	pg.Release()

	require.Equal(t, int64(3), c.Size())
	require.Equal(t, int64(1), c.split)
	require.Equal(t, int32(0), atomic.LoadInt32(&c.expanding))
	moved := c.getCell(2)
	for _, off := range offs[:constant.CellSize] {
		want := c.getCell(0)
		if (off/constant.PageSize)%4 == 2 { // hash1 routes to the new cell
			want = moved
		}
		require.Same(t, want, c.getCellOffset(off))
	}
	found := 0
	for _, pg := range moved.pgs {
		if pg.Offset() != constant.Unassigned {
			found++
		}
	}
	require.Equal(t, constant.CellSize/2, found)
}

// concurrent searches during expansion: identities stay consistent,
// the split state never regresses, and every resident page routes back
// to its cell (misplaced pages excepted).
func TestConcurrentExpansion(t *testing.T) {
	c := testCache(t, 1<<24, 2*constant.MinCacheSize, nil)
	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			var last int64
			for i := 0; i < 5000; i++ {
				off := r.Int63n(256) * constant.PageSize
				pg, _, err := c.Search(off)
				if err != nil {
					errs <- err
					return
				}
				if got := pg.Offset(); got != off {
					errs <- fmt.Errorf("held page for %v reports %v", off, got)
					pg.Release()
					return
				}
				pg.SetDataReady(true)
				pg.Release()
				if i%64 == 0 {
					if size := c.Size(); size < last {
						errs <- fmt.Errorf("table size regressed from %v to %v", last, size)
						return
					} else {
						last = size
					}
				}
			}
		}(int64(w))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// routing closure over the quiesced table
	for i := int64(0); i < int64(atomic.LoadInt32(&c.nchunks)); i++ {
		for j := int64(0); j < c.initNcells; j++ {
			cl := c.getCell(i*c.initNcells + j)
			for _, pg := range cl.pgs {
				off := pg.Offset()
				if off == constant.Unassigned {
					continue
				}
				if c.getCellOffset(off) != cl && pg.Hits() != 1 {
					t.Fatalf("page %v resident in cell %v but routed elsewhere", off, cl.hash)
				}
			}
		}
	}
}

// the expanding flag admits a single writer.
func TestExpandGate(t *testing.T) {
	c := testCache(t, 1<<24, 2*constant.MinCacheSize, nil)
	atomic.StoreInt32(&c.expanding, 1)
	require.False(t, c.expand(c.getCell(0)))
	atomic.StoreInt32(&c.expanding, 0)
	require.True(t, c.expand(c.getCell(0)))
	require.Equal(t, int32(0), atomic.LoadInt32(&c.expanding))
}

type failManager struct {
	memory.Manager
	calls int32
	fail  int32
}

func (m *failManager) GetFreePages(n int) ([][]byte, error) {
	if atomic.AddInt32(&m.calls, 1) >= m.fail {
		return nil, errmsg.OutOfMemory
	}
	return m.Manager.GetFreePages(n)
}

// allocation failure during expansion: expand backs off, the gate
// clears, and lookups keep working under the pre-expansion split.
func TestExpandOOM(t *testing.T) {
	mgr, err := memory.New(1 << 24)
	require.NoError(t, err)
	defer mgr.Close()
	fm := &failManager{Manager: mgr, fail: 3} // construction takes two batches, expansion fails
	cfg := DefaultConfig()
	cfg.CacheSize = 2 * constant.MinCacheSize
	cfg.Shadow = ShadowNone
	cfg.LogWriter = io.Discard
	c, err := New(fm, cfg)
	require.NoError(t, err)

	offs := cellOffsets(c, constant.CellSize+1)
	for _, off := range offs[:constant.CellSize] {
		search(t, c, off).Release()
	}
	for _, off := range offs[:constant.CellSize] {
		search(t, c, off).Release()
	}
	pg, old, err := c.Search(offs[constant.CellSize])
	require.NoError(t, err)
	require.NotEqual(t, constant.Unassigned, old) // fell back to a local eviction
	pg.Release()

	require.Equal(t, int64(2), c.Size())
	require.Equal(t, int32(0), atomic.LoadInt32(&c.expanding))
	for _, off := range offs[:4] {
		search(t, c, off).Release()
	}
	require.Equal(t, int64(2), c.Size())
}

// hits saturate at 255 and the cell-wide halving keeps them there.
func TestHitsSaturation(t *testing.T) {
	c := testCache(t, 1<<24, constant.MinCacheSize, nil)
	peak := 0
	for i := 0; i < 300; i++ {
		pg, _, err := c.Search(0)
		require.NoError(t, err)
		require.Less(t, pg.Hits(), 256)
		if pg.Hits() > peak {
			peak = pg.Hits()
		}
		pg.Release()
	}
	require.Equal(t, constant.MaxHits, peak)
	pg, _, err := c.Search(0)
	require.NoError(t, err)
	require.Less(t, pg.Hits(), constant.MaxHits) // halving fired on the way up
	pg.Release()
}

// while a reference is held the page's identity is pinned.
func TestReferenceSafety(t *testing.T) {
	c := testCache(t, 1<<20, constant.MinCacheSize, nil)
	errs := make(chan error, 64)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 2000; i++ {
				off := r.Int63n(64) * constant.PageSize
				pg, _, err := c.Search(off)
				if err != nil {
					errs <- err
					return
				}
				for j := 0; j < 10; j++ {
					if got := pg.Offset(); got != off {
						errs <- fmt.Errorf("held page for %v reports %v", off, got)
						pg.Release()
						return
					}
				}
				pg.SetDataReady(true)
				pg.Release()
			}
		}(int64(w))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func search(t *testing.T, c *cache, off int64) Page {
	t.Helper()
	pg, _, err := c.Search(off)
	require.NoError(t, err)
	return pg
}

// cellOffsets returns n distinct offsets that all route to cell 0
// under the initial split state.
func cellOffsets(c *cache, n int) []int64 {
	offs := make([]int64, n)
	for i := range offs {
		offs[i] = int64(i) * c.initNcells * constant.PageSize
	}
	return offs
}
