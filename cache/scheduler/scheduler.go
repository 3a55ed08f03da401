package scheduler

import (
	"runtime"

	"github.com/infinivision/pagecache/cache"
	"github.com/infinivision/pagecache/disk"
)

func New(d disk.Disk) *scheduler {
	return &scheduler{d}
}

func (s *scheduler) Close() error {
	return s.d.Close()
}

func (s *scheduler) Flush() error {
	return s.d.Flush()
}

func (s *scheduler) Load(pg cache.Page) error {
	for {
		if pg.IsDataReady() {
			return nil
		}
		if pg.SetIOPending() {
			if pg.IsDataReady() { // a reader finished while we raced for the flag
				pg.ClearIOPending()
				return nil
			}
			err := s.d.Read(pg.Offset(), pg.Buffer())
			if err == nil {
				pg.SetDataReady(true)
			}
			pg.ClearIOPending()
			return err
		}
		runtime.Gosched()
	}
}

func (s *scheduler) Write(pg cache.Page) error {
	return s.d.Write(pg.Offset(), pg.Buffer())
}
