package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_sync_requests_total",
			Help: "Reconcile calls by outcome",
		},
		[]string{"outcome"},
	)
	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "task_sync_duration_seconds",
			Help:    "Time spent in Reconcile",
			Buckets: prometheus.DefBuckets,
		},
	)
	tasksApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_sync_applied_total",
			Help: "Client changes written to the store, by operation",
		},
		[]string{"operation"},
	)
	tasksReturned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_sync_returned_total",
			Help: "Server changes sent back to clients, by bucket",
		},
		[]string{"bucket"},
	)
)

func init() {
	prometheus.MustRegister(syncRequests)
	prometheus.MustRegister(syncDuration)
	prometheus.MustRegister(tasksApplied)
	prometheus.MustRegister(tasksReturned)
}
