package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_requests_total",
			Help: "Total bet requests by result and number",
		},
		[]string{"result", "number"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bet_request_duration_ms",
			Help:    "Bet request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "number"},
	)
)

// RecordBet records business metrics for a bet call.
// result should be "success" or "fail"; number is the chosen number as string.
func RecordBet(result, number string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	num := strings.TrimSpace(number)
	if num == "" {
		num = "unknown"
	}
	betTotal.WithLabelValues(res, num).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	betDuration.WithLabelValues(res, num).Observe(durMs)
}
