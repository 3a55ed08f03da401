package cache

import (
	"os"
	"sync/atomic"

	"github.com/infinivision/pagecache/constant"
	"github.com/infinivision/pagecache/errmsg"
	"github.com/infinivision/pagecache/memory"
	"github.com/infinivision/pagecache/stats"
	"github.com/nnsgmsone/damrey/logger"
)

func DefaultConfig() Config {
	return Config{
		CacheSize: 1 << 22, // 4MB
		Policy:    Frequency,
		Shadow:    ShadowClock,
		LogWriter: os.Stderr,
	}
}

func New(mgr memory.Manager, cfg Config) (*cache, error) {
	if cfg.CacheSize < constant.MinCacheSize {
		return nil, errmsg.CacheTooSmall
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = os.Stderr
	}
	c := &cache{
		mgr:        mgr,
		policy:     cfg.Policy,
		shadowKind: cfg.Shadow,
		log:        logger.New(cfg.LogWriter, "pagecache"),
		st:         stats.New(cfg.Registerer),
	}
	npages := cfg.CacheSize / constant.PageSize
	c.initNcells = npages / constant.CellSize
	nchunks := mgr.MaxSize() / constant.PageSize / constant.CellSize / c.initNcells
	if nchunks < 1 {
		nchunks = 1
	}
	c.dir = make([][]*cell, nchunks)
	chunk, err := c.newChunk(0)
	if err != nil {
		return nil, err
	}
	c.dir[0] = chunk
	c.nchunks = 1
	mgr.RegisterCache(c)
	return c, nil
}

// Size is the logical cell count under the current split state.
func (c *cache) Size() int64 {
	c.lck.RLock()
	n := (int64(1)<<c.level)*c.initNcells + c.split
	c.lck.RUnlock()
	return n
}

// Search returns a referenced page for the page-aligned offset off,
// with the evicted prior identity when admission displaced one. The
// caller must Release the page, and must drive I/O when the page is
// returned with IsDataReady() == false.
func (c *cache) Search(off int64) (Page, int64, error) {
	if off < 0 || off%constant.PageSize != 0 {
		return nil, constant.Unassigned, errmsg.InvalidOffset
	}
	// the responsible cell can change while the cell-level search
	// runs; an expansion signal restarts routing
	for {
		pg, old, err := c.getCellOffset(off).search(off)
		if err == errmsg.ExpandNeeded {
			continue
		}
		if err != nil {
			return nil, constant.Unassigned, err
		}
		return pg, old, nil
	}
}

func (c *cache) getCell(idx int64) *cell {
	c.lck.RLock()
	cl := c.dir[idx/c.initNcells][idx%c.initNcells]
	c.lck.RUnlock()
	return cl
}

func (c *cache) getCellOffset(off int64) *cell {
	pn := off / constant.PageSize
	c.lck.RLock()
	size := (int64(1) << c.level) * c.initNcells
	idx := pn % size
	if idx < c.split {
		idx = pn % (2 * size)
	}
	cl := c.dir[idx/c.initNcells][idx%c.initNcells]
	c.lck.RUnlock()
	return cl
}

// hash1 addresses the doubled cell space of the split in progress.
func (c *cache) hash1(off int64) int64 {
	pn := off / constant.PageSize
	c.lck.RLock()
	size := (int64(1) << (c.level + 1)) * c.initNcells
	c.lck.RUnlock()
	return pn % size
}

// expand advances the split pointer at least past origin and until
// origin's overflow clears. A single writer is enforced by the
// expanding gate; a caller losing the gate returns false and evicts
// locally instead. Chunk allocation failure publishes the chunks that
// did succeed and returns false, leaving the pre-expansion split state
// serving lookups.
func (c *cache) expand(origin *cell) bool {
	if !atomic.CompareAndSwapInt32(&c.expanding, 0, 1) {
		return false
	}
	defer atomic.StoreInt32(&c.expanding, 0)
	size := (int64(1) << c.level) * c.initNcells
	cl := c.getCell(c.split)
	for c.split < origin.hash || origin.isOverflow() {
		chunkIdx := (c.split + size) / c.initNcells
		if n := int64(atomic.LoadInt32(&c.nchunks)); chunkIdx >= n {
			if chunkIdx >= int64(len(c.dir)) {
				return false
			}
			oom := false
			var chunks [][]*cell
			for i := n; i <= chunkIdx; i++ {
				chunk, err := c.newChunk(i)
				if err != nil {
					c.log.Errorf("expand to %v cells: %v\n", (i+1)*c.initNcells, err)
					oom = true
					break
				}
				chunks = append(chunks, chunk)
			}
			c.lck.Lock()
			for i, chunk := range chunks {
				c.dir[n+int64(i)] = chunk
			}
			c.lck.Unlock()
			atomic.AddInt32(&c.nchunks, int32(len(chunks)))
			if oom {
				return false
			}
		}
		cl.rehash(c.getCell(c.split + size))
		c.st.Expansions.Inc()
		c.lck.Lock()
		c.split++
		if c.split == size {
			c.level++
			c.split = 0
			c.lck.Unlock()
			break
		}
		c.lck.Unlock()
		cl = c.getCell(c.split)
	}
	return true
}

func (c *cache) newChunk(chunkIdx int64) ([]*cell, error) {
	chunk := make([]*cell, c.initNcells)
	for j := int64(0); j < c.initNcells; j++ {
		cl, err := newCell(c, chunkIdx*c.initNcells+j)
		if err != nil {
			for _, built := range chunk[:j] {
				c.mgr.FreePages(built.buffers())
			}
			return nil, err
		}
		chunk[j] = cl
	}
	return chunk, nil
}
