package errmsg

import "errors"

var (
	ReadFailed    = errors.New("read failed")
	WriteFailed   = errors.New("write failed")
	OutOfMemory   = errors.New("out of memory")
	ExpandNeeded  = errors.New("expand needed")
	InvalidOffset = errors.New("invalid offset")
	CacheTooSmall = errors.New("cache too small")
)
