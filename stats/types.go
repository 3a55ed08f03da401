package stats

import "github.com/prometheus/client_golang/prometheus"

// Stats counts cache events. Counters are live whether or not a
// registerer was supplied, so the hot path never branches on them.
type Stats struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Evictions   prometheus.Counter
	Expansions  prometheus.Counter
	LockRetries prometheus.Counter
}
