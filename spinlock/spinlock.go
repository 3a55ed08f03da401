package spinlock

import (
	"runtime"
	"sync/atomic"
)

func (l *Lock) Lock() {
	for !atomic.CompareAndSwapInt32(&l.v, 0, 1) {
		runtime.Gosched()
	}
}

func (l *Lock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&l.v, 0, 1)
}

func (l *Lock) Unlock() {
	atomic.StoreInt32(&l.v, 0)
}
