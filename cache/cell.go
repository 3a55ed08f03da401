package cache

import (
	"runtime"
	"sync/atomic"

	"github.com/infinivision/pagecache/constant"
	"github.com/infinivision/pagecache/errmsg"
)

func newCell(c *cache, hash int64) (*cell, error) {
	bufs, err := c.mgr.GetFreePages(constant.CellSize)
	if err != nil {
		return nil, err
	}
	cl := &cell{hash: hash, c: c, pgs: make([]*page, constant.CellSize)}
	for i, buf := range bufs {
		cl.pgs[i] = newPage(buf)
	}
	if c.policy == LRU {
		cl.pos = make([]int, 0, constant.CellSize)
	}
	cl.shadow = newShadowCell(c.shadowKind)
	return cl, nil
}

func (cl *cell) buffers() [][]byte {
	bufs := make([][]byte, len(cl.pgs))
	for i, pg := range cl.pgs {
		bufs[i] = pg.buf
	}
	return bufs
}

func (cl *cell) isOverflow() bool {
	return atomic.LoadInt32(&cl.overflow) != 0
}

func (cl *cell) setOverflow(v bool) {
	if v {
		atomic.StoreInt32(&cl.overflow, 1)
		return
	}
	atomic.StoreInt32(&cl.overflow, 0)
}

// search returns the page representing off, admitting it over a victim
// on miss. The returned page carries one reference. old is the
// victim's previous identity, Unassigned when nothing was displaced.
// errmsg.ExpandNeeded means the table grew and routing must restart.
func (cl *cell) search(off int64) (ret *page, old int64, err error) {
	old = constant.Unassigned
	if !cl.lck.TryLock() {
		cl.c.st.LockRetries.Inc()
		cl.lck.Lock()
	}
	for _, pg := range cl.pgs {
		if pg.Offset() == off {
			ret = pg
			break
		}
	}
	if ret == nil {
		if ret, err = cl.victim(); err != nil {
			// the cell lock was released on the expansion path
			return nil, constant.Unassigned, err
		}
		cl.c.st.Misses.Inc()
		old = ret.Offset()
		if old != constant.Unassigned {
			cl.c.st.Evictions.Inc()
		}
		// the new identity must be published before the lock is
		// released, even though the data is not ready yet
		ret.setOffset(off)
		if cl.shadow != nil {
			if spg, ok := cl.shadow.search(off); ok {
				ret.hits = spg.hits
			}
		}
	} else {
		cl.c.st.Hits.Inc()
		if cl.c.policy == LRU {
			cl.touch(ret)
		}
	}
	ret.incRef()
	if ret.hits == constant.MaxHits {
		cl.scaleDownHits()
	}
	ret.hit()
	cl.lck.Unlock()
	return ret, old, nil
}

// victim picks the slot to reuse. Called with the cell lock held; when
// it returns errmsg.ExpandNeeded the lock has been released.
func (cl *cell) victim() (*page, error) {
	switch cl.c.policy {
	case LRU:
		return cl.lruVictim(), nil
	case FIFO:
		return cl.fifoVictim(), nil
	default:
		return cl.freqVictim()
	}
}

func (cl *cell) freqVictim() (*page, error) {
	logged := false
	expanded := false
	for {
		var ret *page
		minHits := int(constant.MaxHits) + 1
		for ret == nil {
			pending := 0
			for _, pg := range cl.pgs {
				if pg.getRef() > 0 {
					if pg.IsIOPending() {
						pending++
					}
					continue
				}
				if minHits > int(pg.hits) {
					minHits = int(pg.hits)
					ret = pg
				}
				if minHits == 0 {
					break
				}
			}
			if pending == len(cl.pgs) && !logged {
				logged = true
				cl.c.log.Errorf("cell %v: all pages are at io pending\n", cl.hash)
			}
			if ret == nil {
				runtime.Gosched()
			}
		}
		if minHits > 0 {
			cl.setOverflow(true)
			if cl.c.Size() < cl.c.mgr.AverageCacheSize() && !expanded {
				cl.lck.Unlock()
				if cl.c.expand(cl) {
					return nil, errmsg.ExpandNeeded
				}
				cl.lck.Lock()
				expanded = true
				continue
			}
		}
		if cl.shadow != nil && ret.hits > 0 {
			cl.shadow.add(shadowPage{off: ret.Offset(), hits: ret.hits})
		}
		ret.hits = 0
		ret.SetDataReady(false)
		return ret, nil
	}
}

// lruVictim reuses the head of the position list, waiting out any
// holder rather than scanning for an unpinned slot.
func (cl *cell) lruVictim() *page {
	var pos int
	if len(cl.pos) < len(cl.pgs) {
		pos = len(cl.pos)
	} else {
		pos = cl.pos[0]
		cl.pos = append(cl.pos[:0], cl.pos[1:]...)
	}
	ret := cl.pgs[pos]
	for ret.getRef() > 0 {
		runtime.Gosched()
	}
	cl.pos = append(cl.pos, pos)
	ret.SetDataReady(false)
	return ret
}

func (cl *cell) fifoVictim() *page {
	ret := cl.pgs[cl.cursor]
	cl.cursor = (cl.cursor + 1) % len(cl.pgs)
	for ret.getRef() > 0 {
		ret = cl.pgs[cl.cursor]
		cl.cursor = (cl.cursor + 1) % len(cl.pgs)
		runtime.Gosched()
	}
	ret.SetDataReady(false)
	return ret
}

// touch moves pg to the most-recently-used end of the position list.
func (cl *cell) touch(pg *page) {
	idx := cl.index(pg)
	for i, p := range cl.pos {
		if p == idx {
			cl.pos = append(cl.pos[:i], cl.pos[i+1:]...)
			break
		}
	}
	cl.pos = append(cl.pos, idx)
}

func (cl *cell) index(pg *page) int {
	for i, p := range cl.pgs {
		if p == pg {
			return i
		}
	}
	return -1
}

func (cl *cell) scaleDownHits() {
	for _, pg := range cl.pgs {
		pg.hits /= 2
	}
	if cl.shadow != nil {
		cl.shadow.scaleDownHits()
	}
}

// rehash moves the pages mapped to expanded over, swapping them with
// still-uninitialised slots. Pages held by a reference stay behind; no
// later pass moves them, they leave the cell only when evicted. A page
// mapped to neither cell was inserted
// concurrently with a level increase; it is left in place with hits
// forced to 1 so it ages out early.
func (cl *cell) rehash(expanded *cell) {
	cl.lck.Lock()
	expanded.lck.Lock()
	j := 0
	for _, pg := range cl.pgs {
		off := pg.Offset()
		if off == constant.Unassigned {
			continue
		}
		h1 := cl.c.hash1(off)
		if h1 != expanded.hash {
			if h1 != cl.hash {
				pg.hits = 1
			}
			continue
		}
		if pg.getRef() != 0 {
			continue
		}
		for j < len(expanded.pgs) && expanded.pgs[j].Initialized() {
			j++
		}
		if j == len(expanded.pgs) {
			break
		}
		pg.swap(expanded.pgs[j])
		j++
	}
	cl.setOverflow(false)
	expanded.lck.Unlock()
	cl.lck.Unlock()
}
