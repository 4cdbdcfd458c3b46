package metrics

import (
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in ms",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"path", "method"},
	)
)

// HTTPMetricsFilter 在请求进入时记录起始时间
func HTTPMetricsFilter(ctx *context.Context) {
	ctx.Input.SetData("_metrics_start", time.Now())
}

// HTTPMetricsAfter 在响应完成后记录耗时与状态码
func HTTPMetricsAfter(ctx *context.Context) {
	v := ctx.Input.GetData("_metrics_start")
	start, _ := v.(time.Time)
	if start.IsZero() {
		return
	}
	dur := time.Since(start).Milliseconds()
	path := ctx.Input.URL()
	method := ctx.Input.Method()
	status := ctx.ResponseWriter.Status
	// beego 未显式写状态码时 Status 为 0，按 200 统计
	if status == 0 {
		status = 200
	}
	httpReqDuration.WithLabelValues(path, method).Observe(float64(dur))
	httpReqTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}
