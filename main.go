package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mahirlaaj1310/Play-Earn/common"
	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	infrds "github.com/mahirlaaj1310/Play-Earn/internal/infra/redis"
	"github.com/mahirlaaj1310/Play-Earn/internal/worker"
	"github.com/mahirlaaj1310/Play-Earn/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. 配置（Nacos 优先，文件兜底）
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("load config failed: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	// 2. 日志
	logger.InitLogger()
	defer logger.Sync()
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}
	logger.Info("server starting",
		zap.Int("port", cfg.Server.Port),
		zap.Int64("round_duration_ms", cfg.Game.RoundDurationMS))

	// 3. MySQL
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	if cfg.Database.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second)
	}
	infmysql.UseDB(db.DB)

	// 4. Redis（可选，不可用时各处降级）
	if cfg.Redis.Addr != "" {
		infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := infrds.Ping(pingCtx, 2*time.Second); err != nil {
			logger.Warn("redis ping failed, idempotency fast path and caches degraded", zap.Error(err))
		}
		cancel()
	}

	// 5. Prometheus 指标端点（独立端口）
	if cfg.Observability.EnableProm {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := cfg.Observability.PromAddr
			if addr == "" {
				addr = ":9091"
			}
			logger.Info("prometheus endpoint listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("prometheus endpoint failed", zap.Error(err))
			}
		}()
	}

	// 6. 后台 worker：回合时钟 + Outbox 分发
	ctx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	worker.StartRoundClock(ctx, &wg)
	worker.StartOutboxDispatcher(ctx, &wg)

	// 7. 信号处理：优雅退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		stop()
		wg.Wait()
		_ = db.Close()
		logger.Sync()
		os.Exit(0)
	}()

	// 8. HTTP 路由与服务
	routers.Setup()
	beego.BConfig.CopyRequestBody = true
	beego.Run(fmt.Sprintf(":%d", cfg.Server.Port))
}
