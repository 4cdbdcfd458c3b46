package logger

import (
	"context"
)

// trace_id 通过 context 传递：HTTP 层从 X-Request-Id 注入，
// 后台任务（回合时钟、outbox 分发）自行构造后注入，日志输出时统一取出

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// WithTraceID 将 traceId 注入 context
func WithTraceID(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceId)
}

// GetTraceID 从 context 取出 traceId；未注入时返回空串
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}
