package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "server",
		Name:      "pushes_total",
		Help:      "Number of handled push requests by result.",
	}, []string{"result"})

	pullsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandtrack",
		Subsystem: "server",
		Name:      "pulls_total",
		Help:      "Number of handled pull requests by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(pushesTotal, pullsTotal)
}
