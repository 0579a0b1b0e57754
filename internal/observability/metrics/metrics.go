// Package metrics 定义自动化运行的 Prometheus 指标，并提供 /metrics 端点。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 指标按网络与交易类型划分。
var (
	ActionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "action",
		Name:      "attempts_total",
		Help:      "Total action attempts, including retries",
	}, []string{"network", "kind"})

	ActionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "action",
		Name:      "outcomes_total",
		Help:      "Terminal action outcomes",
	}, []string{"network", "kind", "status"})

	ActionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "action",
		Name:      "retries_total",
		Help:      "Failed attempts that were retried",
	}, []string{"network", "kind"})

	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "automator",
		Subsystem: "action",
		Name:      "duration_seconds",
		Help:      "Duration of a single action attempt",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"network", "kind"})

	RunIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "run",
		Name:      "iterations_total",
		Help:      "Completed run loop iterations",
	}, []string{"network"})

	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "ledger",
		Name:      "writes_total",
		Help:      "Ledger entries written per sink",
	}, []string{"sink", "status"})

	LedgerWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "ledger",
		Name:      "write_failures_total",
		Help:      "Ledger sink write failures",
	}, []string{"sink"})

	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automator",
		Subsystem: "alerting",
		Name:      "notifications_total",
		Help:      "Alert notifications by channel and result",
	}, []string{"channel", "result"})
)
