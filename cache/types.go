package cache

import (
	"io"
	"sync"

	"github.com/infinivision/pagecache/memory"
	"github.com/infinivision/pagecache/spinlock"
	"github.com/infinivision/pagecache/stats"
	"github.com/nnsgmsone/damrey/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Frequency = iota // frequency-biased replacement
	LRU
	FIFO
)

const (
	ShadowNone = iota
	ShadowClock
	ShadowLRU
)

// page flag bits
const (
	dataReady = uint32(1) << iota
	ioPending
	initialized
)

// Page is a resident page buffer leased to a caller. The lease pins
// the page's identity until Release. A page returned with
// IsDataReady() == false obligates the caller to drive I/O for it.
type Page interface {
	Buffer() []byte
	Offset() int64
	Hits() int
	Release()
	Initialized() bool
	IsDataReady() bool
	SetDataReady(bool)
	IsIOPending() bool
	SetIOPending() bool // test-and-set; reports whether the caller was elected
	ClearIOPending()
}

type Cache interface {
	Size() int64
	Search(int64) (Page, int64, error)
}

type Config struct {
	CacheSize  int64 // initial cache size in bytes
	Policy     int
	Shadow     int
	LogWriter  io.Writer
	Registerer prometheus.Registerer
}

type page struct {
	off   int64  // atomic
	ref   int32  // atomic
	flags uint32 // atomic
	hits  uint8  // guarded by the owning cell's lock
	buf   []byte
}

type shadowPage struct {
	off        int64
	hits       uint8
	referenced bool
}

type shadowQueue struct {
	buf   []shadowPage
	start int
	num   int
}

type shadowCell interface {
	add(shadowPage)
	search(int64) (shadowPage, bool)
	scaleDownHits()
}

type clockShadowCell struct {
	q    shadowQueue
	last int
}

type lruShadowCell struct {
	q shadowQueue
}

type cell struct {
	hash     int64
	overflow int32 // atomic
	lck      spinlock.Lock
	pgs      []*page
	pos      []int // LRU order, most recent last
	cursor   int   // FIFO cursor
	shadow   shadowCell
	c        *cache
}

type cache struct {
	lck        sync.RWMutex // directory, split, level
	level      uint
	split      int64
	initNcells int64
	nchunks    int32 // atomic, published chunk count
	dir        [][]*cell
	expanding  int32 // atomic test-and-set gate
	policy     int
	shadowKind int
	mgr        memory.Manager
	log        logger.Log
	st         *stats.Stats
}
