package api

import (
	"errors"
	"strconv"
	"strings"

	helper "github.com/mahirlaaj1310/Play-Earn/internal/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/common/response"
	"github.com/mahirlaaj1310/Play-Earn/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newRoundQueryService = service.NewRoundQueryService

// RoundController 回合查询接口
// GET /api/round/current  当前开放回合（不含开奖号码）
// GET /api/round/outcomes 近期开奖走势（时间升序）
type RoundController struct{ beego.Controller }

// Current 查询当前回合快照
func (c *RoundController) Current() {
	traceID := helper.GetTraceID(c.Ctx)

	snap, err := newRoundQueryService().CurrentRound(c.Ctx.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveRound) {
			response.NotFound(&c.Controller, "当前无开放回合", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, snap, traceID)
}

// Outcomes 查询近期开奖号码（最新的在末尾）
func (c *RoundController) Outcomes() {
	traceID := helper.GetTraceID(c.Ctx)

	limit := 0
	if ls := strings.TrimSpace(c.Ctx.Input.Query("limit")); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 {
			response.BadRequest(&c.Controller, "limit must be positive integer", traceID)
			return
		}
		limit = v
	}

	nums, err := newRoundQueryService().RecentOutcomes(c.Ctx.Request.Context(), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	if nums == nil {
		nums = []int{}
	}

	response.Success(&c.Controller, map[string]any{"outcomes": nums}, traceID)
}
