package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	chelper "github.com/mahirlaaj1310/Play-Earn/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	infrds "github.com/mahirlaaj1310/Play-Earn/internal/infra/redis"
	"github.com/mahirlaaj1310/Play-Earn/internal/metrics"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"
	"github.com/mahirlaaj1310/Play-Earn/internal/state"

	decimal "github.com/shopspring/decimal"
)

// ResolveOutput 封盘结算结果
type ResolveOutput struct {
	RoundID       int64
	WinningNumber int
	ClosedAt      int64
	TotalBets     int
	TotalPayout   decimal.Decimal
	NextRoundID   int64
}

type ResolverService interface {
	// CloseRound 封盘开奖并结算指定回合；重复调用幂等
	CloseRound(ctx context.Context, roundID int64) (*ResolveOutput, error)
	// EnsureOpenRound 确保存在开放回合（启动引导/结算后轮转）
	EnsureOpenRound(ctx context.Context) (*model.GameRound, error)
}

type resolverService struct{}

func NewResolverService() ResolverService { return &resolverService{} }

var (
	ErrRoundNotFound  = errors.New("round not found")
	ErrRoundStillOpen = errors.New("round deadline not reached")
)

// 派彩单次失败的重试次数与退避基数
const (
	payoutMaxAttempts = 3
	payoutBackoffBase = 100 * time.Millisecond
)

// CloseRound: 封盘、开奖、逐单派彩、标记结算、轮转下一回合
//
// 两阶段执行：
//  1. 封盘事务：锁回合行 -> 开奖 -> CAS 翻转状态 -> 写结算日志(唯一键) -> Outbox
//  2. 派彩阶段：逐注单小事务，失败重试，重试耗尽落 payout_failures 人工对账
//
// 三重幂等防护：is_settled 标记 / settlement_log 唯一键 / 派彩账本 bill_no 唯一键
// 崩溃恢复：已封盘未结算的回合重新进入时跳过开奖，沿用已落定的号码继续派彩
func (s *resolverService) CloseRound(ctx context.Context, roundID int64) (*ResolveOutput, error) {

	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordSettlement(resultLabel, start) }()

	cfg := config.Get()
	traceID := fmt.Sprintf("settle-%d-%d", roundID, start.UnixMilli())

	fmt.Printf("[Settle] 收到封盘请求: round_id=%d, trace_id=%s\n", roundID, traceID)

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// ========== 幂等性保护 #1: 回合状态 ==========
	round, err := model.GetRoundForUpdate(ctx, tx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	currentState := codeToState(round.GameStatus)
	fmt.Printf("[Settle] 当前状态: state=%s(%d), is_settled=%d, round_id=%d, trace_id=%s\n",
		currentState, round.GameStatus, round.IsSettled, roundID, traceID)

	// 已结算过：直接返回既有结果（幂等）
	if round.IsSettled == 1 {
		_ = tx.Rollback()
		fmt.Printf("[Settle] 该回合已结算，跳过重复结算: round_id=%d, trace_id=%s\n", roundID, traceID)
		resultLabel = "success_idempotent"
		return settledOutput(ctx, round)
	}

	var (
		win      int
		closedAt int64
	)

	switch currentState {
	case state.StateOpen:
		// 截止时刻权威：未到期不封盘
		now := time.Now().UnixMilli()
		if now < round.EndsAt {
			return nil, ErrRoundStillOpen
		}

		if _, err := state.NextState(currentState, state.EvtClose); err != nil {
			return nil, err
		}

		// 开奖：均匀抽取 [min, max] 内的数字
		win = chelper.GenerateRandNum(cfg.Game.NumberMin, cfg.Game.NumberMax)
		closedAt = now

		// CAS 翻转状态；持有行锁时必然命中，防御性校验受影响行数
		n, err := model.CloseRound(ctx, tx, roundID, win, closedAt)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("close round lost race: round_id=%d", roundID)
		}

		// ========== 幂等性保护 #2: 结算日志唯一键 ==========
		slog := &model.SettlementLog{
			RoundID:       roundID,
			WinningNumber: win,
			TotalBets:     0, // 稍后回填
			TotalPayout:   decimal.Zero,
			Operator:      "system",
			TraceID:       traceID,
		}
		if err := model.CreateSettlementLog(ctx, tx, slog); err != nil {
			if isDuplicateKeyError(err) {
				_ = tx.Rollback()
				fmt.Printf("[Settle] 结算日志已存在，跳过重复结算: round_id=%d, trace_id=%s\n", roundID, traceID)
				resultLabel = "success_idempotent"
				return settledOutput(ctx, round)
			}
			return nil, err
		}

		// 封盘事件（事务内写 Outbox，确保与数据库状态一致）
		if err := model.CreateOutbox(ctx, tx, model.TopicRoundClosed, fmt.Sprintf("%d", roundID), map[string]any{
			"event":          model.TopicRoundClosed,
			"round_id":       roundID,
			"winning_number": win,
			"closed_at":      closedAt,
			"trace_id":       traceID,
		}); err != nil {
			return nil, err
		}

		if err := tx.Commit(); err != nil {
			return nil, err
		}

	case state.StateClosed:
		// 崩溃恢复：号码已落定，不重新开奖，直接续做派彩
		win = round.WinningNumber
		closedAt = round.ClosedAt
		_ = tx.Rollback()
		fmt.Printf("[Settle] 回合已封盘未结算，续做派彩: round_id=%d, winning_number=%d, trace_id=%s\n",
			roundID, win, traceID)

	default:
		return nil, fmt.Errorf("settle not allowed in state %s", currentState)
	}

	// ========== 派彩阶段 ==========
	// 封盘已提交：此后回合不再接受投注，注单集为封盘时刻的快照
	bets, err := model.ListByRound(ctx, infmysql.SQLX(), roundID)
	if err != nil {
		return nil, err
	}

	fmt.Printf("[Settle] 找到 %d 个待结算注单: round_id=%d, winning_number=%d, trace_id=%s\n",
		len(bets), roundID, win, traceID)

	multiplier := decimal.NewFromInt(cfg.Game.WinMultiplier)
	totalPayout := decimal.Zero
	failed := 0

	for i := range bets {
		b := bets[i]
		payout := decimal.Zero
		if b.BetNumber == win {
			payout = b.BetAmount.Mul(multiplier).Round(2)
		}

		if err := settleOneBet(ctx, &b, payout, traceID); err != nil {
			failed++
			metrics.RecordPayoutFailure()
			fmt.Printf("[Settle] 注单派彩失败（已落对账表）: bill_no=%s, user_id=%d, payout=%s, error=%v, trace_id=%s\n",
				b.BillNo, b.UserID, payout.String(), err, traceID)
			continue
		}
		totalPayout = totalPayout.Add(payout)
	}

	// ========== 幂等性保护 #3: 标记为已结算 ==========
	tx2, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx2.Rollback() }()

	if err := model.MarkRoundSettled(ctx, tx2, roundID); err != nil {
		return nil, err
	}
	if err := model.UpdateSettlementStats(ctx, tx2, roundID, len(bets), totalPayout); err != nil {
		return nil, err
	}
	if err := tx2.Commit(); err != nil {
		return nil, err
	}

	// 轮转：立即开出下一回合，游戏无间隙连续进行
	next, err := s.openNextRound(ctx)
	if err != nil {
		// 下一回合开不出来不阻塞本回合结算结果；时钟下个 tick 会兜底补开
		fmt.Printf("[Settle] 开启下一回合失败: error=%v, trace_id=%s\n", err, traceID)
	}

	out := &ResolveOutput{
		RoundID:       roundID,
		WinningNumber: win,
		ClosedAt:      closedAt,
		TotalBets:     len(bets),
		TotalPayout:   totalPayout,
	}
	if next != nil {
		out.NextRoundID = next.RoundID
	}

	// 将开奖结果写入 Redis，便于后续查询/回放
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"round_id":       roundID,
			"winning_number": win,
			"closed_at":      closedAt,
			"total_bets":     len(bets),
			"total_payout":   chelper.TrimDecimal(totalPayout),
		}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.RoundResultKey(roundID), b, 2*time.Minute).Err()
		}
		refreshOutcomeChart(ctx)
	}

	resultLabel = "success"
	if failed > 0 {
		resultLabel = "partial"
	}
	fmt.Printf("[Settle] 结算完成: round_id=%d, winning_number=%d, total_bets=%d, total_payout=%s, failed=%d, next_round_id=%d, trace_id=%s\n",
		roundID, win, len(bets), totalPayout.String(), failed, out.NextRoundID, traceID)

	return out, nil
}

// settleOneBet 单注单派彩小事务：锁玩家 -> 账本贷记(唯一 bill_no) -> 注单落结算
// 失败退避重试；重试耗尽写入 payout_failures 供人工对账
// 账本唯一键保证同一注单的派彩至多入账一次（崩溃恢复重入安全）
func settleOneBet(ctx context.Context, b *model.Bet, payout decimal.Decimal, traceID string) error {
	var lastErr error

	for attempt := 1; attempt <= payoutMaxAttempts; attempt++ {
		lastErr = func() error {
			txCtx, cancel := context.WithTimeout(ctx, defaultTxTimeout)
			defer cancel()

			tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()

			if payout.IsPositive() {
				_, err := CreditPlayer(txCtx, tx, b.UserID, payout, LedgerEntry{
					BillNo:  payoutBillNo(b.BillNo),
					RoundID: b.RoundID,
					BizType: model.LedgerBizPayout,
					Remark:  "bet payout",
					TraceID: traceID,
				})
				if err != nil && !errors.Is(err, ErrLedgerDuplicate) {
					return err
				}
				// ErrLedgerDuplicate: 已入账（上次提交后崩溃），仅补结注单状态
			}

			// 输单 payout=0 仅落结算状态；受影响行数为 0 表示已结算过
			if _, err := model.UpdateSettlement(txCtx, tx, b.BillNo, payout); err != nil {
				return err
			}

			return tx.Commit()
		}()

		if lastErr == nil {
			return nil
		}
		time.Sleep(payoutBackoffBase * time.Duration(attempt))
	}

	// 重试耗尽：落对账表，不阻塞其它注单
	f := &model.PayoutFailure{
		RoundID:   b.RoundID,
		BillNo:    b.BillNo,
		UserID:    b.UserID,
		Amount:    payout,
		LastError: lastErr.Error(),
		TraceID:   traceID,
	}
	if ierr := f.Insert(ctx, infmysql.SQLX()); ierr != nil {
		fmt.Printf("[Settle] 写入派彩失败记录失败: bill_no=%s, error=%v, trace_id=%s\n",
			b.BillNo, ierr, traceID)
	}
	return lastErr
}

// EnsureOpenRound 确保存在开放回合；不存在则开一个新回合
func (s *resolverService) EnsureOpenRound(ctx context.Context) (*model.GameRound, error) {
	round, err := model.GetOpenRound(ctx, infmysql.SQLX())
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return s.openNextRound(ctx)
}

// openNextRound 开启下一回合并广播 round:updated
func (s *resolverService) openNextRound(ctx context.Context) (*model.GameRound, error) {
	cfg := config.Get()
	now := time.Now().UnixMilli()
	endsAt := now + cfg.Game.RoundDurationMS

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 开局与存在性判定为同一条语句：时钟兜底与结算轮转并发开局时只会成功一个
	roundID, err := model.InsertOpenRoundIfAbsent(ctx, tx, now, endsAt)
	if err != nil {
		return nil, err
	}
	if roundID == 0 {
		_ = tx.Rollback()
		return model.GetOpenRound(ctx, infmysql.SQLX())
	}

	if err := model.CreateOutbox(ctx, tx, model.TopicRoundUpdated, fmt.Sprintf("%d", roundID), map[string]any{
		"event":    model.TopicRoundUpdated,
		"round_id": roundID,
		"start_at": now,
		"ends_at":  endsAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	round := &model.GameRound{RoundID: roundID, StartAt: now, EndsAt: endsAt, GameStatus: 1}

	// 当前回合缓存（前端倒计时快速查询）
	if r := infrds.Client(); r != nil {
		val := map[string]any{"round_id": roundID, "start_at": now, "ends_at": endsAt}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.KeyCurrentRound, b, time.Duration(cfg.Game.RoundDurationMS)*time.Millisecond).Err()
		}
	}

	fmt.Printf("[Settle] 开启新回合: round_id=%d, start_at=%d, ends_at=%d\n", roundID, now, endsAt)
	return round, nil
}

// refreshOutcomeChart 重建近期开奖走势缓存（时间升序）
func refreshOutcomeChart(ctx context.Context) {
	cfg := config.Get()
	nums, err := model.ListRecentWinningNumbers(ctx, infmysql.SQLX(), cfg.Game.OutcomeLimit)
	if err != nil {
		return
	}
	// DB 返回倒序，这里反转为时间升序
	for i, j := 0, len(nums)-1; i < j; i, j = i+1, j-1 {
		nums[i], nums[j] = nums[j], nums[i]
	}
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(nums); e == nil {
			_ = r.Set(ctx, infrds.KeyOutcomeChart, b, 2*time.Minute).Err()
		}
	}
}

// settledOutput 从结算日志组装幂等返回
func settledOutput(ctx context.Context, round *model.GameRound) (*ResolveOutput, error) {
	out := &ResolveOutput{
		RoundID:       round.RoundID,
		WinningNumber: round.WinningNumber,
		ClosedAt:      round.ClosedAt,
	}
	if slog, err := model.GetSettlementLog(ctx, infmysql.SQLX(), round.RoundID); err == nil {
		out.TotalBets = slog.TotalBets
		out.TotalPayout = slog.TotalPayout
	}
	return out, nil
}

// payoutBillNo 派彩账单号：在注单号前加 PO 前缀，保证与扣款账单号不同且全局唯一
func payoutBillNo(betBillNo string) string { return "PO" + betBillNo }

// codeToState 数据库状态码转状态机状态
func codeToState(code int8) string {
	switch code {
	case 1:
		return state.StateOpen
	case 2:
		return state.StateClosed
	case 3:
		return state.StateSettled
	}
	return "unknown"
}
