package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConversationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversations_total",
		Help: "Total number of conversation runs",
	}, []string{"mode", "outcome"})

	ConversationIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conversation_iterations",
		Help:    "Remote completion calls made per conversation run",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 21},
	}, []string{"mode"})

	ToolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_invocations_total",
		Help: "Total number of local tool invocations",
	}, []string{"tool", "outcome"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "tool_invocation_seconds",
		Help: "Time taken to run local tool handlers",
	}, []string{"tool"})
)

var HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of HTTP requests served by the metrics endpoint",
}, []string{"path", "method", "status"})
