package memory

import (
	"github.com/infinivision/pagecache/constant"
	"github.com/infinivision/pagecache/errmsg"
	"github.com/infinivision/pagecache/stack"
	"golang.org/x/sys/unix"
)

// New maps an anonymous region of maxSize bytes and carves it into
// page buffers. maxSize is rounded down to a whole number of pages.
func New(maxSize int64) (*manager, error) {
	if maxSize < constant.MinCacheSize {
		maxSize = constant.MinCacheSize
	}
	maxSize = maxSize / constant.PageSize * constant.PageSize
	buf, err := unix.Mmap(-1, 0, int(maxSize), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	m := &manager{buf: buf, fq: stack.New()}
	for o := int64(0); o < maxSize; o += constant.PageSize {
		m.fq.Push(buf[o : o+constant.PageSize : o+constant.PageSize])
	}
	return m, nil
}

func (m *manager) Close() error {
	return unix.Munmap(m.buf)
}

func (m *manager) MaxSize() int64 {
	return int64(len(m.buf))
}

// AverageCacheSize is the soft per-cache target, in cells.
func (m *manager) AverageCacheSize() int64 {
	m.Lock()
	defer m.Unlock()
	n := int64(len(m.caches))
	if n == 0 {
		n = 1
	}
	return int64(len(m.buf)) / constant.PageSize / constant.CellSize / n
}

func (m *manager) RegisterCache(c Cache) {
	m.Lock()
	m.caches = append(m.caches, c)
	m.Unlock()
}

func (m *manager) GetFreePages(n int) ([][]byte, error) {
	m.Lock()
	defer m.Unlock()
	if m.fq.Len() < n {
		return nil, errmsg.OutOfMemory
	}
	pgs := make([][]byte, n)
	for i := 0; i < n; i++ {
		pgs[i] = m.fq.Pop()
	}
	return pgs, nil
}

func (m *manager) FreePages(pgs [][]byte) {
	m.Lock()
	for _, pg := range pgs {
		m.fq.Push(pg)
	}
	m.Unlock()
}
