package stats

import "github.com/prometheus/client_golang/prometheus"

func New(r prometheus.Registerer) *Stats {
	s := &Stats{
		Hits:        counter("hits_total", "lookups served by a resident page"),
		Misses:      counter("misses_total", "lookups that admitted a page"),
		Evictions:   counter("evictions_total", "resident pages displaced by admission"),
		Expansions:  counter("expansions_total", "split-pointer advances of the hash table"),
		LockRetries: counter("lock_retries_total", "cell lock acquisitions that did not succeed at once"),
	}
	if r != nil {
		r.MustRegister(s.Hits, s.Misses, s.Evictions, s.Expansions, s.LockRetries)
	}
	return s
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pagecache",
		Name:      name,
		Help:      help,
	})
}
