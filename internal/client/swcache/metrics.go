package swcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "swcache",
		Name:      "hits_total",
		Help:      "Cache hits by kind: current version, cross-version fallback, offline.",
	}, []string{"kind"})

	precacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "swcache",
		Name:      "precache_misses_total",
		Help:      "Assets that could not be fetched during install precaching.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, precacheMisses)
}
