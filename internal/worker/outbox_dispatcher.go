package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	chelper "github.com/mahirlaaj1310/Play-Earn/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	infmq "github.com/mahirlaaj1310/Play-Earn/internal/infra/rocketmq"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"

	"go.uber.org/zap"
)

// StartOutboxDispatcher 启动 Outbox 分发器，支持通过 ctx 优雅退出
// 事件扇出：RocketMQ（启用时）+ Webhook 推送（启用时）；至少启用一路才运行
// 至少一次投递：任一路失败则整条记录重试，订阅方需容忍重复
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup) {
	cfg := config.Get()
	mqOn := infmq.Enabled()
	hookOn := cfg.Webhook.Enabled && cfg.Webhook.URL != ""
	if !mqOn && !hookOn {
		logger.Info("outbox: no sink enabled, dispatcher not started")
		return
	}

	var pub infmq.Publisher
	if mqOn {
		pub = infmq.PublisherInstance()
	}

	hookTimeout := chelper.WebhookTimeout
	if cfg.Webhook.TimeoutMS > 0 {
		hookTimeout = time.Duration(cfg.Webhook.TimeoutMS) * time.Millisecond
	}

	wg.Add(1)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer wg.Done()

		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, cancel := context.WithTimeout(ctx, 2*time.Second)
				rows, err := model.ListOutboxPending(c, infmysql.SQLX(), 100)
				cancel()
				if err != nil {
					logger.Warn("outbox: list pending failed", zap.Error(err))
					continue
				}
				for _, r := range rows {
					if err := dispatchOne(pub, hookOn, cfg.Webhook.URL, hookTimeout, r); err != nil {
						_ = model.MarkOutboxFailed(ctx, infmysql.SQLX(), r.ID, truncateErr(err))
						continue
					}
					if err := model.MarkOutboxSent(ctx, infmysql.SQLX(), r.ID); err != nil {
						logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
					}
				}
			}
		}
	}()
}

// dispatchOne 将一条事件推送到所有启用的投递通道
func dispatchOne(pub infmq.Publisher, hookOn bool, hookURL string, hookTimeout time.Duration, r model.OutboxRow) error {
	if pub != nil {
		// MQ 主题名不允许冒号，投递前转换
		if err := pub.Publish(infmq.TopicName(r.Topic), []byte(r.Payload)); err != nil {
			return err
		}
	}
	if hookOn {
		_, code, err := chelper.HttpDoTimeout([]byte(r.Payload), "POST", hookURL, map[string]string{
			"Content-Type": "application/json",
			"X-Topic":      r.Topic,
		}, hookTimeout)
		if err != nil {
			return err
		}
		if code < 200 || code > 299 {
			return fmt.Errorf("webhook status %d", code)
		}
	}
	return nil
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}
