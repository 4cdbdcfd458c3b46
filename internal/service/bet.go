package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	chelper "github.com/mahirlaaj1310/Play-Earn/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	infrds "github.com/mahirlaaj1310/Play-Earn/internal/infra/redis"
	"github.com/mahirlaaj1310/Play-Earn/internal/metrics"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	decimal "github.com/shopspring/decimal"
)

// 处理投注业务逻辑

// BetInput 输入参数
// RoundID 为 0 时表示投注当前开放回合；非 0 时必须与当前开放回合一致
type BetInput struct {
	Username       string
	RoundID        int64
	BetNumber      int
	BetAmount      string
	IdempotencyKey string
	TraceID        string
}

type BetOutput struct {
	BillNo       string
	RoundID      int64
	RemainAmount string // 剩余金额
}

type BetService interface {
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error)
}

type betService struct{}

func NewBetService() BetService { return &betService{} }

const (
	// Redis 进行中锁 TTL：建议小于最短投注窗口，避免长时间阻塞重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：用于重复请求直接返回第一次成功结果；应覆盖到大多数“短时重试”窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// 拒绝原因按优先级定义：无开放回合 > 窗口已关闭 > 数字非法 > 金额非法 > 余额不足
// Redis key 构造见 internal/infra/redis/keys.go
var (
	ErrDuplicateInFlight = errors.New("duplicate request in flight")
	ErrNoActiveRound     = errors.New("no active round")
	ErrBetWindowClosed   = errors.New("bet window closed")
	ErrInvalidNumber     = errors.New("bet number out of range")
	ErrInvalidAmount     = errors.New("invalid bet amount")
)

// PlaceBet 处理下注主流程：
// 下注逻辑
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error) {

	start := time.Now()
	result := "fail"

	cfg := config.Get()
	numLabel := strconv.Itoa(in.BetNumber)
	defer func() { metrics.RecordBet(result, numLabel, start) }()

	// 打印接收到的投注请求
	fmt.Printf("[Bet]  收到投注请求: round_id=%d, username=%s, number=%d, amount=%s, idem_key=%s, trace_id=%s\n",
		in.RoundID, in.Username, in.BetNumber, in.BetAmount, in.IdempotencyKey, in.TraceID)

	// ========== 投注金额解析 ==========
	// 金额校验的"判定"延后到回合校验之后执行，
	// 保证同时违反多条规则时按既定优先级返回拒绝原因
	// ==================================
	amtDec, amtErr := decimal.NewFromString(strings.TrimSpace(in.BetAmount))
	if amtErr != nil {
		// 解析失败统一归为金额非法，不向调用方泄露 decimal 的内部错误
		amtErr = fmt.Errorf("%w: malformed amount", ErrInvalidAmount)
	} else {
		amtErr = validateAmount(amtDec, cfg)
	}

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Bet]  Redis 缓存命中: idem_key=%s, bill_no=%s, trace_id=%s\n",
					in.IdempotencyKey, out.BillNo, in.TraceID)
				result = "success"
				return &out, nil
			}
		}
		// ========== 分布式锁实现==========
		// 1. 生成唯一锁值（UUID）防止误删其他请求的锁
		// 2. 使用 SetNX 获取锁
		// 3. 使用 Lua 脚本原子释放（仅当锁值匹配时删除）
		// ================================================

		// 生成唯一锁值，防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)

		// 进行中锁，吸收瞬时重复
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			// 检查是否有缓存的结果
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out BetOutput
				if json.Unmarshal(bs, &out) == nil {
					fmt.Printf("[Bet] Redis 缓存命中（重复请求）: idem_key=%s, bill_no=%s, trace_id=%s\n",
						in.IdempotencyKey, out.BillNo, in.TraceID)
					result = "success"
					return &out, nil
				}
			}
			fmt.Printf("[Bet]  重复请求进行中: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// 使用 Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			// Lua 脚本：只有当锁的值等于我们设置的值时才删除
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			res, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
			if err != nil {
				fmt.Printf("[Bet] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			} else if res == int64(0) {
				fmt.Printf("[Bet] 分布式锁已被其他请求释放或过期: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
			}
		}()
	}

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）。
	// 若上游 ctx 已设置 deadline，则沿用；否则使用默认 defaultTxTimeout。
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Bet] 开启事务失败: error=%v, round_id=%d, trace_id=%s\n",
			err, in.RoundID, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// ========== 回合准入校验 ==========
	// 锁定当前开放回合：回合行锁是投注与结算之间唯一的串行化点，
	// 拿到锁即保证结算尚未开始（或已结束，状态会暴露）
	// ==================================
	round, err := model.GetOpenRoundForUpdate(txCtx, tx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Printf("[Bet]  当前无开放回合: trace_id=%s\n", in.TraceID)
			return nil, ErrNoActiveRound
		}
		fmt.Printf("[Bet]  查询开放回合失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, fmt.Errorf("failed to get open round: %w", err)
	}

	// 校验请求声明的回合与当前开放回合一致
	if in.RoundID != 0 && in.RoundID != round.RoundID {
		if in.RoundID < round.RoundID {
			// 声明的是历史回合，按窗口已关闭处理
			fmt.Printf("[Bet]  投注回合已关闭: claimed=%d, current=%d, trace_id=%s\n",
				in.RoundID, round.RoundID, in.TraceID)
			return nil, ErrBetWindowClosed
		}
		fmt.Printf("[Bet]  投注回合不存在: claimed=%d, current=%d, trace_id=%s\n",
			in.RoundID, round.RoundID, in.TraceID)
		return nil, ErrNoActiveRound
	}

	// 验证时间窗口：以截止时刻为准，状态位未翻转也必须拒绝
	now := time.Now().UnixMilli()
	if now >= round.EndsAt {
		fmt.Printf("[Bet] 投注窗口已关闭: now=%d, ends_at=%d, round_id=%d, trace_id=%s\n",
			now, round.EndsAt, round.RoundID, in.TraceID)
		return nil, ErrBetWindowClosed
	}

	// 验证数字范围
	if in.BetNumber < cfg.Game.NumberMin || in.BetNumber > cfg.Game.NumberMax {
		fmt.Printf("[Bet]  投注数字超出范围: number=%d, min=%d, max=%d, trace_id=%s\n",
			in.BetNumber, cfg.Game.NumberMin, cfg.Game.NumberMax, in.TraceID)
		return nil, ErrInvalidNumber
	}

	// 验证金额（解析与限额错误在此统一返回）
	if amtErr != nil {
		fmt.Printf("[Bet]  无效的投注金额: bet_amount=%s, error=%v, trace_id=%s\n",
			in.BetAmount, amtErr, in.TraceID)
		return nil, amtErr
	}

	// 查询用户并加锁
	user, err := model.GetPlayerByUsernameForUpdate(txCtx, tx, in.Username)
	if err != nil {
		fmt.Printf("[Bet] 查询玩家失败: error=%v, username=%s, trace_id=%s\n",
			err, in.Username, in.TraceID)
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	// 生成订单号（使用可读格式，使用内部用户ID）
	billNo := generateBillNo(user.ID)

	// 幂等：先占幂等键，ref 记录 bill_no
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "bet", Ref: billNo}).Insert(txCtx, tx); err != nil {
		// 若幂等冲突：尝试返回上次结果
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Bet]  幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			// Redis 先查
			if r := infrds.Client(); r != nil {
				if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
					var out BetOutput
					if json.Unmarshal(bs, &out) == nil {
						fmt.Printf("[Bet]  从 Redis 返回上次结果: bill_no=%s, trace_id=%s\n",
							out.BillNo, in.TraceID)
						result = "success"
						return &out, nil
					}
				}
			}
			// DB 回源：根据幂等键查 bill_no，再查玩家余额
			ref, e1 := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
			if e1 == nil && ref != "" {
				balance, e2 := model.GetPlayerBalance(ctx, infmysql.SQLX(), in.Username)
				if e2 == nil {
					fmt.Printf("[Bet]  从数据库返回上次结果: bill_no=%s, trace_id=%s\n",
						ref, in.TraceID)
					result = "success"
					return &BetOutput{BillNo: ref, RoundID: round.RoundID, RemainAmount: chelper.TrimDecimal(balance)}, nil
				}
			}
		}
		fmt.Printf("[Bet]  插入幂等键失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 扣款（余额校验与账本写入在 Ledger 内完成；user 行已加锁）
	afterDec, err := DebitPlayer(txCtx, tx, user.ID, amtDec, LedgerEntry{
		BillNo:  billNo,
		RoundID: round.RoundID,
		BizType: model.LedgerBizBet,
		Remark:  "bet deduct",
		TraceID: in.TraceID,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			fmt.Printf("[Bet]  余额不足: username=%s, amount=%s, trace_id=%s\n",
				in.Username, in.BetAmount, in.TraceID)
		}
		return nil, err
	}

	// 落注单（bill_status:1待结算）
	bet := &model.Bet{
		BillNo:         billNo,
		RoundID:        round.RoundID,
		UserID:         user.ID,
		Username:       user.Username,
		BetNumber:      in.BetNumber,
		BetAmount:      amtDec.Round(2),
		BillStatus:     1,
		Payout:         decimal.Zero,
		BetTime:        now,
		IdempotencyKey: in.IdempotencyKey,
		TraceID:        in.TraceID,
	}
	if err := bet.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Bet]  创建注单失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	// Outbox 消息（异步）
	payload := map[string]any{
		"event":      model.TopicBetPlaced,
		"bill_no":    billNo,
		"round_id":   round.RoundID,
		"username":   user.Username,
		"bet_number": in.BetNumber,
		"bet_amount": chelper.TrimDecimal(amtDec),
		"bet_time":   now,
	}
	if err := model.CreateOutbox(txCtx, tx, model.TopicBetPlaced, billNo, payload); err != nil {
		fmt.Printf("[Bet]  写入 Outbox 失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Bet]  提交事务失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	result = "success"
	out := &BetOutput{BillNo: billNo, RoundID: round.RoundID, RemainAmount: chelper.TrimDecimal(afterDec)}

	// 写入 Redis 结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	return out, nil
}

// validateAmount 校验投注金额：正数且落在配置的上下限内
func validateAmount(amt decimal.Decimal, cfg *config.Config) error {
	if amt.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	minBet, err := decimal.NewFromString(cfg.Game.MinBet)
	if err == nil && amt.LessThan(minBet) {
		return fmt.Errorf("%w: below minimum %s", ErrInvalidAmount, minBet.String())
	}
	maxBet, err := decimal.NewFromString(cfg.Game.MaxBet)
	if err == nil && amt.GreaterThan(maxBet) {
		return fmt.Errorf("%w: exceeds maximum %s", ErrInvalidAmount, maxBet.String())
	}
	return nil
}

// generateBillNo 生成可读的注单号
// 格式：PE{YYYYMMDD}{HHmmss}{UserID后4位}{随机3位十六进制}
// 示例：PE20251017143025100156A
// 优点：
//   - 可读：包含日期、时间、用户信息
//   - 有序：按时间排序
//   - 唯一：时间 + 用户 + 随机数保证唯一性
func generateBillNo(userID int64) string {
	now := time.Now()
	// 日期时间部分：YYYYMMDD HHmmss
	dateTime := now.Format("20060102150405")
	// 用户ID后4位
	userSuffix := fmt.Sprintf("%04d", userID%10000)
	// 随机3位十六进制（0-FFF，4096种可能）
	randomBytes := make([]byte, 2)
	rand.Read(randomBytes)
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes)[:3])

	return fmt.Sprintf("PE%s%s%s", dateTime, userSuffix, randomHex)
}
