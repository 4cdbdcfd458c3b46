package middleware

import (
	"runtime/debug"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/common/response"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// RecoveryFilter 捕获请求链路上未处理的 panic，防止单个请求拖垮进程
func RecoveryFilter(ctx *beegocontext.Context) {
	defer func() {
		if err := recover(); err != nil {
			traceID := helper.GetTraceID(ctx)

			logger.Error("panic recovered",
				zap.String("trace_id", traceID),
				zap.String("method", ctx.Request.Method),
				zap.String("path", ctx.Request.URL.Path),
				zap.Any("error", err),
				zap.String("stack", string(debug.Stack())))

			ctx.Output.SetStatus(500)
			ctx.Output.JSON(response.APIResponse{
				Code:      response.CodeSystemError,
				Message:   "系统繁忙，请稍后重试",
				Data:      nil,
				TraceID:   traceID,
				Timestamp: 0,
			}, false, false)

			// 终止后续 filter 与控制器执行
			ctx.Abort(500, "panic recovered")
		}
	}()
}
