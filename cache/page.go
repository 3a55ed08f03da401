package cache

import (
	"sync/atomic"

	"github.com/infinivision/pagecache/constant"
)

func newPage(buf []byte) *page {
	return &page{off: constant.Unassigned, buf: buf}
}

func (pg *page) Buffer() []byte {
	return pg.buf
}

func (pg *page) Offset() int64 {
	return atomic.LoadInt64(&pg.off)
}

func (pg *page) Hits() int {
	return int(pg.hits)
}

func (pg *page) Release() {
	atomic.AddInt32(&pg.ref, -1)
}

func (pg *page) Initialized() bool {
	return pg.flag(initialized)
}

func (pg *page) IsDataReady() bool {
	return pg.flag(dataReady)
}

func (pg *page) SetDataReady(ready bool) {
	if ready {
		pg.setFlags(dataReady | initialized)
		return
	}
	pg.clearFlags(dataReady)
}

func (pg *page) IsIOPending() bool {
	return pg.flag(ioPending)
}

func (pg *page) SetIOPending() bool {
	for {
		curr := atomic.LoadUint32(&pg.flags)
		if curr&ioPending != 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&pg.flags, curr, curr|ioPending) {
			return true
		}
	}
}

func (pg *page) ClearIOPending() {
	pg.clearFlags(ioPending)
}

// incRef happens only under the owning cell's lock; a ref observed as
// zero there stays zero until the lock is released.
func (pg *page) incRef() {
	atomic.AddInt32(&pg.ref, 1)
}

func (pg *page) getRef() int32 {
	return atomic.LoadInt32(&pg.ref)
}

func (pg *page) hit() {
	if pg.hits < constant.MaxHits {
		pg.hits++
	}
}

func (pg *page) setOffset(off int64) {
	atomic.StoreInt64(&pg.off, off)
}

// swap exchanges the full page state with other. Both owning cells
// must be locked and both refs must be zero.
func (pg *page) swap(other *page) {
	pg.buf, other.buf = other.buf, pg.buf
	pg.hits, other.hits = other.hits, pg.hits
	off, flags := atomic.LoadInt64(&pg.off), atomic.LoadUint32(&pg.flags)
	atomic.StoreInt64(&pg.off, atomic.LoadInt64(&other.off))
	atomic.StoreUint32(&pg.flags, atomic.LoadUint32(&other.flags))
	atomic.StoreInt64(&other.off, off)
	atomic.StoreUint32(&other.flags, flags)
}

func (pg *page) flag(f uint32) bool {
	return atomic.LoadUint32(&pg.flags)&f != 0
}

func (pg *page) setFlags(f uint32) {
	for {
		curr := atomic.LoadUint32(&pg.flags)
		if atomic.CompareAndSwapUint32(&pg.flags, curr, curr|f) {
			return
		}
	}
}

func (pg *page) clearFlags(f uint32) {
	for {
		curr := atomic.LoadUint32(&pg.flags)
		if atomic.CompareAndSwapUint32(&pg.flags, curr, curr&^f) {
			return
		}
	}
}
