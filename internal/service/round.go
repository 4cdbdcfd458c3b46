package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	infrds "github.com/mahirlaaj1310/Play-Earn/internal/infra/redis"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"

	"go.uber.org/zap"
)

// RoundSnapshot 当前回合快照（开放回合不暴露开奖号码）
type RoundSnapshot struct {
	RoundID    int64 `json:"round_id"`
	StartAt    int64 `json:"start_at"`
	EndsAt     int64 `json:"ends_at"`
	NowMs      int64 `json:"now_ms"`
	RemainMs   int64 `json:"remain_ms"`
	GameStatus int8  `json:"game_status"`
}

// RoundQueryService 回合查询（当前回合 / 近期走势）
type RoundQueryService interface {
	CurrentRound(ctx context.Context) (*RoundSnapshot, error)
	RecentOutcomes(ctx context.Context, limit int) ([]int, error)
}

type roundQueryService struct{}

func NewRoundQueryService() RoundQueryService { return &roundQueryService{} }

// 当前回合缓存载体
type cachedRound struct {
	RoundID int64 `json:"round_id"`
	StartAt int64 `json:"start_at"`
	EndsAt  int64 `json:"ends_at"`
}

// CurrentRound 查询当前开放回合
// Redis 快路径命中则不回源；缓存的回合已过期时回源数据库（等待时钟封盘）
func (s *roundQueryService) CurrentRound(ctx context.Context) (*RoundSnapshot, error) {
	now := time.Now().UnixMilli()

	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.KeyCurrentRound).Bytes(); len(bs) > 0 {
			var c cachedRound
			if json.Unmarshal(bs, &c) == nil && now < c.EndsAt {
				return &RoundSnapshot{
					RoundID:    c.RoundID,
					StartAt:    c.StartAt,
					EndsAt:     c.EndsAt,
					NowMs:      now,
					RemainMs:   c.EndsAt - now,
					GameStatus: 1,
				}, nil
			}
		}
	}

	round, err := model.GetOpenRound(ctx, infmysql.SQLX())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveRound
		}
		logger.Error("query current round failed", zap.Error(err))
		return nil, err
	}

	remain := round.EndsAt - now
	if remain < 0 {
		remain = 0
	}

	// 回填缓存（到期自动失效）
	if r := infrds.Client(); r != nil && remain > 0 {
		if b, e := json.Marshal(cachedRound{RoundID: round.RoundID, StartAt: round.StartAt, EndsAt: round.EndsAt}); e == nil {
			_ = r.Set(ctx, infrds.KeyCurrentRound, b, time.Duration(remain)*time.Millisecond).Err()
		}
	}

	return &RoundSnapshot{
		RoundID:    round.RoundID,
		StartAt:    round.StartAt,
		EndsAt:     round.EndsAt,
		NowMs:      now,
		RemainMs:   remain,
		GameStatus: round.GameStatus,
	}, nil
}

// RecentOutcomes 近期开奖号码走势，时间升序（最新的在末尾）
func (s *roundQueryService) RecentOutcomes(ctx context.Context, limit int) ([]int, error) {
	cfg := config.Get()
	if limit <= 0 || limit > cfg.Game.OutcomeLimit {
		limit = cfg.Game.OutcomeLimit
	}

	// 走势缓存命中则按需截尾返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.KeyOutcomeChart).Bytes(); len(bs) > 0 {
			var nums []int
			if json.Unmarshal(bs, &nums) == nil {
				if len(nums) > limit {
					nums = nums[len(nums)-limit:]
				}
				return nums, nil
			}
		}
	}

	nums, err := model.ListRecentWinningNumbers(ctx, infmysql.SQLX(), limit)
	if err != nil {
		logger.Error("query recent outcomes failed", zap.Error(err))
		return nil, err
	}
	// DB 返回倒序，反转为时间升序
	for i, j := 0, len(nums)-1; i < j; i, j = i+1, j-1 {
		nums[i], nums[j] = nums[j], nums[i]
	}
	return nums, nil
}
