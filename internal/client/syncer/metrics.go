package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "sync",
		Name:      "rounds_total",
		Help:      "Number of completed sync rounds by result.",
	}, []string{"result"})

	pushedRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "sync",
		Name:      "pushed_rows_total",
		Help:      "Number of dirty rows pushed to the server.",
	})

	pulledRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "sync",
		Name:      "pulled_rows_total",
		Help:      "Number of rows received from the server and applied.",
	})

	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bandtrack",
		Subsystem: "sync",
		Name:      "round_duration_seconds",
		Help:      "Wall time of a full sync round.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(syncsTotal, pushedRows, pulledRows, syncDuration)
}
