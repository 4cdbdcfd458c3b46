package worker

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"
	"github.com/mahirlaaj1310/Play-Earn/internal/service"

	"go.uber.org/zap"
)

// StartRoundClock 启动回合时钟，支持通过 ctx 优雅退出
// 职责：
//  1. 启动引导：确保存在开放回合；补结崩溃遗留的已封盘未结算回合
//  2. 周期扫描：发现过期开放回合即触发封盘结算（截止时刻权威）
//
// 任何单次 tick 的失败只记录日志，时钟本身永不退出
func StartRoundClock(ctx context.Context, wg *sync.WaitGroup) {
	cfg := config.Get()
	resolver := service.NewResolverService()

	// 启动引导（带超时，失败不阻塞启动，交由后续 tick 兜底）
	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	bootstrap(bootCtx, resolver)
	cancel()

	interval := time.Duration(cfg.Game.CheckIntervalMS) * time.Millisecond

	wg.Add(1)
	go func() {
		ticker := time.NewTicker(interval)
		defer wg.Done()

		defer ticker.Stop()
		logger.Info("round clock started",
			zap.Duration("interval", interval),
			zap.Int64("round_duration_ms", cfg.Game.RoundDurationMS))

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx, resolver)
			}
		}
	}()
}

// bootstrap 启动时恢复：先补结遗留回合，再确保有开放回合
func bootstrap(ctx context.Context, resolver service.ResolverService) {
	resumeUnsettled(ctx, resolver)

	if _, err := resolver.EnsureOpenRound(ctx); err != nil {
		logger.Error("bootstrap: ensure open round failed", zap.Error(err))
	}
}

// resumeUnsettled 补结已封盘未结算的回合
// 这类回合来自崩溃遗留，也可能是上一次结算在封盘提交后派彩/收尾阶段失败；
// 每个 tick 都要扫，否则中奖注单会一直悬停到进程重启
func resumeUnsettled(ctx context.Context, resolver service.ResolverService) {
	for {
		round, err := model.GetUnsettledClosedRound(ctx, infmysql.SQLX())
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				logger.WarnCtx(ctx, "clock: query unsettled round failed", zap.Error(err))
			}
			return
		}
		logger.InfoCtx(ctx, "clock: resuming unsettled round", zap.Int64("round_id", round.RoundID))
		if _, err := resolver.CloseRound(ctx, round.RoundID); err != nil {
			logger.ErrorCtx(ctx, "clock: resume settlement failed",
				zap.Int64("round_id", round.RoundID), zap.Error(err))
			return
		}
	}
}

// tick 单次扫描：先补结遗留回合，再对过期开放回合触发封盘；无开放回合时补开
func tick(ctx context.Context, resolver service.ResolverService) {
	now := time.Now().UnixMilli()
	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	c = logger.WithTraceID(c, "clock-"+strconv.FormatInt(now, 10))

	resumeUnsettled(c, resolver)

	round, err := model.GetExpiredOpenRound(c, infmysql.SQLX(), now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// 无过期回合；确保存在开放回合（结算轮转失败后的兜底）
			if _, err := resolver.EnsureOpenRound(c); err != nil {
				logger.WarnCtx(c, "clock: ensure open round failed", zap.Error(err))
			}
			return
		}
		logger.WarnCtx(c, "clock: scan expired round failed", zap.Error(err))
		return
	}

	if _, err := resolver.CloseRound(c, round.RoundID); err != nil {
		// 已到期但仍开放的回合会在下个 tick 重试；结算自身幂等
		if !errors.Is(err, service.ErrRoundStillOpen) {
			logger.ErrorCtx(c, "clock: close round failed",
				zap.Int64("round_id", round.RoundID), zap.Error(err))
		}
	}
}
