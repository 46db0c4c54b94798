package conncache

import "github.com/prometheus/client_golang/prometheus"

var (
	connectCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifxfdw",
		Subsystem: "conncache",
		Name:      "connects_total",
		Help:      "The number of remote sessions established.",
	}, []string{"server"})

	evictionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifxfdw",
		Subsystem: "conncache",
		Name:      "evictions_total",
		Help:      "The number of connections evicted after fatal errors.",
	}, []string{"server"})

	txCommitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifxfdw",
		Subsystem: "conncache",
		Name:      "tx_commits_total",
		Help:      "The number of remote transaction commits.",
	}, []string{"server"})

	txRollbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifxfdw",
		Subsystem: "conncache",
		Name:      "tx_rollbacks_total",
		Help:      "The number of remote transaction rollbacks.",
	}, []string{"server"})
)

func init() {
	prometheus.MustRegister(connectCounter, evictionCounter, txCommitCounter, txRollbackCounter)
}
