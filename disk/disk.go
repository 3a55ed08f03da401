package disk

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/infinivision/pagecache/constant"
	"github.com/infinivision/pagecache/errmsg"
)

func New(path string) (*disk, error) {
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0664)
	if err != nil {
		return nil, err
	}
	st, err := fp.Stat()
	if err != nil {
		fp.Close()
		return nil, err
	}
	return &disk{fp: fp, size: st.Size()}, nil
}

func (d *disk) Close() error {
	return d.fp.Close()
}

func (d *disk) Flush() error {
	return d.fp.Sync()
}

func (d *disk) Size() int64 {
	return atomic.LoadInt64(&d.size)
}

// Read fills buf from the byte offset off. Offsets beyond the written
// extent read as zeroes, so fresh pages need no preformatting.
func (d *disk) Read(off int64, buf []byte) error {
	if off < 0 || off%constant.PageSize != 0 {
		return errmsg.InvalidOffset
	}
	n, err := d.fp.ReadAt(buf, off)
	switch {
	case err == io.EOF:
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	case err != nil:
		return err
	case n != len(buf):
		return errmsg.ReadFailed
	}
	return nil
}

func (d *disk) Write(off int64, buf []byte) error {
	if off < 0 || off%constant.PageSize != 0 {
		return errmsg.InvalidOffset
	}
	n, err := d.fp.WriteAt(buf, off)
	switch {
	case err != nil:
		return err
	case n != len(buf):
		return errmsg.WriteFailed
	}
	d.grow(off + int64(len(buf)))
	return nil
}

func (d *disk) grow(end int64) {
	for {
		curr := atomic.LoadInt64(&d.size)
		if end <= curr || atomic.CompareAndSwapInt64(&d.size, curr, end) {
			return
		}
	}
}
