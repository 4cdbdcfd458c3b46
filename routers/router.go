package routers

import (
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	"github.com/mahirlaaj1310/Play-Earn/internal/controller/api"
	"github.com/mahirlaaj1310/Play-Earn/internal/metrics"
	"github.com/mahirlaaj1310/Play-Earn/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// Setup 注册HTTP路由与全局过滤器
// 显式调用而非 init()：路由注册依赖配置，必须在 config.Load 之后执行
func Setup() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 业务 API ==========

	// 投注接口：凭证随请求携带 + 限流
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/bet", &api.BetController{}, "post:Bet")

	// 回合查询接口（公开，只读）
	beego.Router("/api/round/current", &api.RoundController{}, "get:Current")
	beego.Router("/api/round/outcomes", &api.RoundController{}, "get:Outcomes")

	// 玩家账户接口
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/register", beego.BeforeExec, middleware.RateLimitFilter)
		beego.InsertFilter("/api/login", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/register", &api.UserController{}, "post:Register")
	beego.Router("/api/login", &api.UserController{}, "post:Login")
	beego.Router("/api/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/bets", &api.UserController{}, "get:Bets")
}
