package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_settlements_total",
			Help: "Total round settlements by result",
		},
		[]string{"result"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "round_settlement_duration_ms",
			Help:    "Round settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		},
		[]string{"result"},
	)

	payoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payout_failures_total",
			Help: "Total bet payouts parked for manual reconciliation",
		},
	)
)

// RecordSettlement 记录封盘结算的业务指标
// result: "success" | "success_idempotent" | "partial" | "fail"
func RecordSettlement(result string, started time.Time) {
	res := strings.TrimSpace(result)
	if res == "" {
		res = "fail"
	}
	settleTotal.WithLabelValues(res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	settleDuration.WithLabelValues(res).Observe(durMs)
}

// RecordPayoutFailure 记录一笔重试耗尽的派彩
func RecordPayoutFailure() { payoutFailures.Inc() }
