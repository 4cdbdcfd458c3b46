package api

import (
	"errors"

	helper "github.com/mahirlaaj1310/Play-Earn/internal/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/common/response"
	"github.com/mahirlaaj1310/Play-Earn/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 玩家账户接口
// POST /api/register  注册（赠送初始余额）
// POST /api/login     登录校验
// GET  /api/balance   余额查询
// GET  /api/bets      投注历史
type UserController struct{ beego.Controller }

// Register 注册新玩家
func (c *UserController) Register() {
	traceID := helper.GetTraceID(c.Ctx)

	cred, ok, msg := helper.ParseAndValidateCredentials(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	p, err := newUserService().Register(c.Ctx.Request.Context(), cred.Username, cred.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			response.Conflict(&c.Controller, response.CodeUsernameTaken, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"username": p.Username,
		"balance":  service.FormatBalance(p.Balance),
	}, traceID)
}

// Login 校验用户名密码
func (c *UserController) Login() {
	traceID := helper.GetTraceID(c.Ctx)

	cred, ok, msg := helper.ParseAndValidateCredentials(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	p, err := newUserService().Login(c.Ctx.Request.Context(), cred.Username, cred.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(&c.Controller, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"username": p.Username,
		"balance":  service.FormatBalance(p.Balance),
	}, traceID)
}

// Balance 查询余额（凭证随查询参数携带）
func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)

	cred, ok, msg := helper.ParseAndValidateCredentials(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newUserService()
	if _, err := svc.Login(c.Ctx.Request.Context(), cred.Username, cred.Password); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(&c.Controller, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	balance, err := svc.Balance(c.Ctx.Request.Context(), cred.Username)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"username": cred.Username,
		"balance":  service.FormatBalance(balance),
	}, traceID)
}

// Bets 查询投注历史（按下注时间倒序）
func (c *UserController) Bets() {
	traceID := helper.GetTraceID(c.Ctx)

	cred, ok, msg := helper.ParseAndValidateCredentials(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	roundID, limit, ok, msg := helper.ParseHistoryQuery(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newUserService()
	if _, err := svc.Login(c.Ctx.Request.Context(), cred.Username, cred.Password); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(&c.Controller, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	records, err := svc.History(c.Ctx.Request.Context(), cred.Username, roundID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{"bets": records}, traceID)
}
