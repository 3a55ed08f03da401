package memory

import (
	"sync"

	"github.com/infinivision/pagecache/stack"
)

type Cache interface {
	Size() int64
}

// Manager owns the global page pool shared by every cache in the
// process. Page buffers never leave the pool's mapping; caches borrow
// them for their lifetime.
type Manager interface {
	Close() error
	MaxSize() int64
	AverageCacheSize() int64
	RegisterCache(Cache)
	GetFreePages(int) ([][]byte, error)
	FreePages([][]byte)
}

type manager struct {
	sync.Mutex
	buf    []byte
	fq     stack.Stack
	caches []Cache
}
