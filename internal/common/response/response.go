package response

import (
	"time"

	beego "github.com/beego/beego/v2/server/web"
)

// APIResponse 统一 API 响应结构
// 所有 API 都应该返回这个结构，无论成功还是失败
type APIResponse struct {
	Code      int         `json:"code"`                // 业务错误码：0=成功，非0=失败
	Message   string      `json:"message"`             // 错误消息
	Data      interface{} `json:"data,omitempty"`      // 业务数据（失败时为 null）
	TraceID   string      `json:"trace_id,omitempty"`  // 请求追踪ID
	Timestamp int64       `json:"timestamp,omitempty"` // 响应时间戳（Unix 毫秒）
}

// 错误码定义
const (
	CodeSuccess             = 0    // 成功
	CodeBadRequest          = 1000 // 参数错误
	CodeBusinessError       = 2000 // 业务错误（通用）
	CodeDuplicateInFlight   = 2001 // 重复请求进行中
	CodeDuplicateKey        = 2002 // 幂等键冲突
	CodeNoActiveRound       = 2003 // 无开放回合
	CodeBetWindowClosed     = 2004 // 投注窗口已关闭
	CodeInvalidNumber       = 2005 // 投注数字非法
	CodeInvalidAmount       = 2006 // 投注金额非法
	CodeInsufficientBalance = 2007 // 余额不足
	CodeUnauthorized        = 3000 // 未授权
	CodeUsernameTaken       = 3001 // 用户名已存在
	CodeRateLimitExceeded   = 4000 // 请求频率超限
	CodeNotFound            = 4004 // 资源不存在
	CodeSystemError         = 5000 // 系统错误
)

// ErrorMessages 错误消息映射
var ErrorMessages = map[int]string{
	CodeSuccess:             "success",
	CodeBadRequest:          "参数错误",
	CodeBusinessError:       "业务处理失败",
	CodeDuplicateInFlight:   "重复请求进行中，请稍后重试",
	CodeDuplicateKey:        "重复的请求",
	CodeNoActiveRound:       "当前无开放回合",
	CodeBetWindowClosed:     "投注窗口已关闭",
	CodeInvalidNumber:       "投注数字超出范围",
	CodeInvalidAmount:       "投注金额非法",
	CodeInsufficientBalance: "余额不足",
	CodeUnauthorized:        "用户名或密码错误",
	CodeUsernameTaken:       "用户名已存在",
	CodeRateLimitExceeded:   "请求过于频繁，请稍后重试",
	CodeNotFound:            "资源不存在",
	CodeSystemError:         "系统繁忙，请稍后重试",
}

// Success 成功响应
func Success(c *beego.Controller, data interface{}, traceID string) {
	c.Data["json"] = APIResponse{
		Code:      CodeSuccess,
		Message:   ErrorMessages[CodeSuccess],
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// Error 错误响应（使用预定义的错误消息）
func Error(c *beego.Controller, httpStatus int, code int, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   getErrorMessage(code),
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// ErrorWithMessage 错误响应（使用自定义错误消息）
func ErrorWithMessage(c *beego.Controller, httpStatus int, code int, message string, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   message,
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// BadRequest 参数错误响应（HTTP 400）
func BadRequest(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 400, CodeBadRequest, message, traceID)
}

// Conflict 资源冲突响应（HTTP 409）
func Conflict(c *beego.Controller, code int, traceID string) {
	Error(c, 409, code, traceID)
}

// Unauthorized 未授权响应（HTTP 401）
func Unauthorized(c *beego.Controller, traceID string) {
	Error(c, 401, CodeUnauthorized, traceID)
}

// NotFound 资源不存在响应（HTTP 404）
func NotFound(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 404, CodeNotFound, message, traceID)
}

// InternalError 系统错误响应（HTTP 500）
func InternalError(c *beego.Controller, traceID string) {
	Error(c, 500, CodeSystemError, traceID)
}

// getErrorMessage 获取错误码对应的消息，没有则回退到通用消息
func getErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return ErrorMessages[CodeBusinessError]
}
