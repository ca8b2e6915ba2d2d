package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts requests by route template, method and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveychat_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	// HTTPDuration tracks handler latency
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surveychat_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"route", "method"})

	// Submissions counts response submissions by outcome
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveychat_submissions_total",
		Help: "Response submissions by outcome (accepted, conflict, invalid, error)",
	}, []string{"outcome"})

	// ValidationFailures counts rejected answers by reason
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveychat_validation_failures_total",
		Help: "Answer validation failures by reason",
	}, []string{"reason"})

	// SubmissionChecks counts duplicate-submission lookups
	SubmissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveychat_submission_checks_total",
		Help: "Submission check lookups by result (submitted, clear) and source (cache, store)",
	}, []string{"result", "source"})

	// Emails counts outgoing mail by kind and outcome
	Emails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveychat_emails_total",
		Help: "Outgoing emails by kind (confirmation, invite) and outcome",
	}, []string{"kind", "outcome"})

	// WSConnections tracks live author websocket connections
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "surveychat_ws_connections",
		Help: "Open author websocket connections",
	})
)
