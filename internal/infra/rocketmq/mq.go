package rocketmq

import (
	"context"
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"

	"go.uber.org/zap"
)

// Publisher is a minimal facade for sending messages.
type Publisher interface {
	Publish(topic string, body []byte) error
}

var (
	initOnce sync.Once
	enabled  bool
	pub      Publisher
)

// Enabled reports whether MQ is configured and producer started.
func Enabled() bool { initOnce.Do(initMQ); return enabled }

// PublisherInstance returns the active publisher (stub if disabled).
func PublisherInstance() Publisher {
	initOnce.Do(initMQ)
	if pub == nil {
		pub = &stubPublisher{}
	}
	return pub
}

// Real publisher backed by RocketMQ v5 client.
type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(topic string, body []byte) error {
	if r.p == nil {
		return nil
	}
	msg := &rmq.Message{Topic: topic, Body: body}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.p.Send(ctx, msg)
	return err
}

// Stub publisher used when MQ is disabled.
type stubPublisher struct{}

func (s *stubPublisher) Publish(topic string, body []byte) error {
	logger.Warn("[mq disabled] drop message", zap.String("topic", topic))
	return nil
}

func initMQ() {
	// Use SDK's ResetLogger to avoid default file-based logging under /logs
	rmq.ResetLogger()

	cfg := config.Get()
	if cfg == nil || strings.TrimSpace(cfg.RocketMQ.Endpoint) == "" {
		enabled = false
		pub = &stubPublisher{}
		return
	}

	// sanitize endpoint: trim, strip scheme, pick first if contains ',' or ';'
	endpoint := strings.TrimSpace(cfg.RocketMQ.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}

	ak := strings.TrimSpace(cfg.RocketMQ.AccessKey)
	sk := strings.TrimSpace(cfg.RocketMQ.SecretKey)
	topicsStr := cfg.RocketMQ.ProducerTopics

	// 安全起见：若缺少凭证则禁用 MQ（避免底层 SDK 在 Sign 阶段空指针崩溃）
	if ak == "" || sk == "" {
		enabled = false
		pub = &stubPublisher{}
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return
	}

	mqCfg := &rmq.Config{Endpoint: endpoint}
	mqCfg.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}
	logger.Info("rocketmq producer config", zap.String("endpoint", endpoint), zap.String("topics", topicsStr))

	var opts []rmq.ProducerOption
	if topicsStr != "" {
		parts := strings.Split(topicsStr, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(strings.ReplaceAll(parts[i], ":", "_"))
		}
		opts = append(opts, rmq.WithTopics(parts...))
	}

	p, err := rmq.NewProducer(mqCfg, opts...)
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		enabled = false
		pub = &stubPublisher{}
		return
	}

	// 使用 goroutine 异步启动，避免阻塞主流程
	startDone := make(chan error, 1)
	go func() {
		startDone <- p.Start()
	}()

	// 等待启动完成或超时（2秒）
	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed (will use stub publisher)", zap.Error(err))
			enabled = false
			pub = &stubPublisher{}
			return
		}
		pub = &rmqPublisher{p: p}
		enabled = true
		logger.Info("rocketmq enabled", zap.String("endpoint", endpoint))
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout (will use stub publisher, messages will be dropped)")
		enabled = false
		pub = &stubPublisher{}
		return
	}
}

// TopicName 将事件主题转换为 MQ 合法主题名（"round:closed" -> "round_closed"）
func TopicName(topic string) string {
	return strings.ReplaceAll(strings.TrimSpace(topic), ":", "_")
}
