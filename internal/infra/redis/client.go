package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// 全局 Redis 客户端；addr 未配置时保持 nil，各调用方自行降级
var rdb *goredis.Client

// Init 根据配置初始化 Redis 客户端；addr 为空表示禁用，直接跳过
func Init(addr, password string, db int) {
	if addr == "" {
		return
	}
	rdb = goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

// Client 返回 Redis 客户端实例；未初始化时为 nil
func Client() *goredis.Client { return rdb }

// Ping 在给定超时内探测连接；未启用 Redis 时视为可用
func Ping(ctx context.Context, timeout time.Duration) error {
	if rdb == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rdb.Ping(c).Err()
}
