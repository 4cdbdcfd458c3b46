package middleware

import (
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"
)

// RequestIDFilter 为每个请求注入并回传 X-Request-Id，用于链路追踪的最小闭环
// 客户端可自带 X-Request-Id（便于端到端串联），过长或缺失时由服务端生成
func RequestIDFilter(ctx *context.Context) {
	id := ctx.Input.Header("X-Request-Id")
	if id == "" || len(id) > 64 {
		id = uuid.NewString()
	}
	ctx.Input.SetData("trace_id", id)
	ctx.Output.Header("X-Request-Id", id)

	// 同步注入 request context，后续 ctx 感知日志可直接取用
	r := ctx.Request
	ctx.Request = r.WithContext(logger.WithTraceID(r.Context(), id))
}
