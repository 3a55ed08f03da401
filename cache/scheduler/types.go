package scheduler

import (
	"github.com/infinivision/pagecache/cache"
	"github.com/infinivision/pagecache/disk"
)

// Scheduler is the caller-side I/O engine. The cache returns pages
// whose data may not be ready; Load elects one reader per page and
// publishes the contents for every other holder.
type Scheduler interface {
	Close() error
	Flush() error
	Load(cache.Page) error
	Write(cache.Page) error
}

type scheduler struct {
	d disk.Disk
}
