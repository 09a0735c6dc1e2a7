package graph

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	workflowRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_requests_total",
			Help: "Total number of workflow executions",
		},
		[]string{"outcome"},
	)
	nodeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "workflow_node_duration_seconds",
			Help: "Duration of individual workflow node executions",
		},
		[]string{"node"},
	)
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_cache_lookups_total",
			Help: "Semantic cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(workflowRequestsTotal)
	prometheus.MustRegister(nodeDurationSeconds)
	prometheus.MustRegister(cacheLookupsTotal)
}
