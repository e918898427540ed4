package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busassist_chat_requests_total",
			Help: "Total number of chat requests by outcome.",
		},
		[]string{"outcome"},
	)
	chatStageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "busassist_chat_stage_latency_ms",
			Help:    "Chat pipeline stage latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000},
		},
		[]string{"stage"},
	)
	queryErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busassist_query_errors_total",
			Help: "Total number of generated queries that failed to execute.",
		},
	)
	queryRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busassist_query_rejected_total",
			Help: "Total number of generated queries rejected by the allow-list guard.",
		},
	)
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busassist_llm_calls_total",
			Help: "Total number of language model round trips by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	llmRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busassist_llm_retries_total",
			Help: "Total number of retried language model round trips.",
		},
		[]string{"provider"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "busassist_active_sessions",
			Help: "Current number of conversation sessions held in memory.",
		},
	)
	archivedChatlogsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busassist_archived_chatlogs_total",
			Help: "Total number of chatlog rows exported to the object store.",
		},
	)
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busassist_auth_failures_total",
			Help: "Total number of requests refused at API key authentication by reason.",
		},
		[]string{"reason"},
	)
	purgedChatlogsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busassist_purged_chatlogs_total",
			Help: "Total number of archived chatlog rows deleted from the transit store.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatRequestsTotal,
		chatStageLatencyMs,
		queryErrorsTotal,
		queryRejectedTotal,
		llmCallsTotal,
		llmRetriesTotal,
		activeSessions,
		archivedChatlogsTotal,
		purgedChatlogsTotal,
		authFailuresTotal,
	)
}

func ObserveChatRequest(outcome string) {
	chatRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	chatStageLatencyMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func IncrementQueryError() {
	queryErrorsTotal.Inc()
}

func IncrementQueryRejected() {
	queryRejectedTotal.Inc()
}

func ObserveLLMCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmCallsTotal.WithLabelValues(provider, outcome).Inc()
}

func IncrementLLMRetry(provider string) {
	llmRetriesTotal.WithLabelValues(provider).Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

func AddArchivedChatlogs(count int) {
	if count > 0 {
		archivedChatlogsTotal.Add(float64(count))
	}
}

func AddPurgedChatlogs(count int64) {
	if count > 0 {
		purgedChatlogsTotal.Add(float64(count))
	}
}

func IncrementAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}
