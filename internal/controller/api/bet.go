package api

import (
	"errors"
	"strings"

	helper "github.com/mahirlaaj1310/Play-Earn/internal/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/common/response"
	"github.com/mahirlaaj1310/Play-Earn/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var (
	newBetService  = service.NewBetService
	newUserService = service.NewUserService
)

type BetController struct{ beego.Controller }

/*
幂等键：客户端生成并随请求传入，用于在网络重试/超时重发/服务端重试时保证“同一业务请求只生效一次”。
使用约定：
- 对于“同一次下注”的所有重试，请传相同的 idempotency_key；
- 业务语义不同（如金额/数字/回合/用户不同）的请求必须使用不同的 key；
- 建议生成方式：UUID（推荐）或对 username+round_id+bet_number+bet_amount 做哈希。
服务端幂等保证（多层防护）：
1) Redis 进行中锁（约45秒）：并发重复请求直接返回 202，并携带 Retry-After: 1；
2) MySQL 唯一键：在事务内先插入 idempotency_keys(idempotency_key)，若已存在则视为重复请求，返回首次请求的结果；
3) 结果缓存：首次成功结果会写入 Redis（短期缓存），后续重复可直接读缓存快速返回。
*/

// Bet 处理投注接口：POST /api/bet
func (c *BetController) Bet() {
	// 1) 解析入参与基本校验
	// 这里必须要对业务参数严格校验，后续service不再重复校验
	bp, ok, msg := helper.ParseAndValidateBet(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)
	reqCtx := c.Ctx.Request.Context()

	// 2) 凭证校验（无会话设计，投注请求自带凭证）
	player, err := newUserService().Login(reqCtx, bp.Username, bp.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(&c.Controller, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 3) 投注业务逻辑处理
	out, err := newBetService().PlaceBet(reqCtx, service.BetInput{
		Username:       player.Username,
		RoundID:        bp.RoundId,
		BetNumber:      bp.BetNumber,
		BetAmount:      bp.BetAmount,
		IdempotencyKey: bp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			c.Ctx.Output.Header("Retry-After", "1")
			response.ErrorWithMessage(&c.Controller, 202, response.CodeDuplicateInFlight,
				"重复请求进行中，请稍后重试", traceID)
			return
		}
		// 拒绝原因按优先级映射
		if errors.Is(err, service.ErrNoActiveRound) {
			response.Conflict(&c.Controller, response.CodeNoActiveRound, traceID)
			return
		}
		if errors.Is(err, service.ErrBetWindowClosed) {
			response.Conflict(&c.Controller, response.CodeBetWindowClosed, traceID)
			return
		}
		if errors.Is(err, service.ErrInvalidNumber) {
			response.Error(&c.Controller, 400, response.CodeInvalidNumber, traceID)
			return
		}
		if errors.Is(err, service.ErrInvalidAmount) {
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInvalidAmount, err.Error(), traceID)
			return
		}
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Conflict(&c.Controller, response.CodeInsufficientBalance, traceID)
			return
		}
		// 兜底：余额/状态类业务错误
		if strings.Contains(err.Error(), "disabled") {
			response.Unauthorized(&c.Controller, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"bill_no":       out.BillNo,
		"round_id":      out.RoundID,
		"remain_amount": out.RemainAmount,
	}, traceID)
}
