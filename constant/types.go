package constant

const (
	PageSize = 4096 // 4k
	CellSize = 8
)

const (
	ShadowSize = 8
)

const (
	MaxHits = 0xFF
)

const (
	// Unassigned marks a page that does not represent any backing-store
	// offset yet.
	Unassigned = int64(-1)
)

const (
	MinCacheSize = CellSize * PageSize
)
