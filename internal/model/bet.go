package model

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// Bet 对应 bets 表（按 round_id 归集的注单簿，兼作投注历史）
// bill_status: 1=待结算 2=已结算
// 接单后除结算字段（payout/bill_status）外不可变；结算字段只写一次
type Bet struct {
	BillNo         string          `db:"bill_no"`         // 注单号(主键)
	RoundID        int64           `db:"round_id"`        // 回合ID
	UserID         int64           `db:"user_id"`         // 玩家ID（内部ID）
	Username       string          `db:"username"`        // 用户名（冗余，便于查询）
	BetNumber      int             `db:"bet_number"`      // 所押数字
	BetAmount      decimal.Decimal `db:"bet_amount"`      // 下注金额(非负)
	BillStatus     int8            `db:"bill_status"`     // 结算状态
	Payout         decimal.Decimal `db:"payout"`          // 派彩金额（未结算为0，结算后为 0 或 amount×倍数）
	BetTime        int64           `db:"bet_time"`        // 下注时间（毫秒戳）
	IdempotencyKey string          `db:"idempotency_key"` // 幂等键
	TraceID        string          `db:"trace_id"`        // 链路追踪ID
	CreatedAt      int64           `db:"created_at"`      // 创建时间
	UpdatedAt      int64           `db:"updated_at"`      // 更新时间
}

// Insert 插入一条注单
func (b *Bet) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	bt := b.BetTime
	if bt == 0 {
		bt = now
	}

	sqlStr := `INSERT INTO bets (bill_no, round_id, user_id, username, bet_number, bet_amount,
		bill_status, payout, bet_time, idempotency_key, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, b.BillNo, b.RoundID, b.UserID, b.Username, b.BetNumber,
		b.BetAmount, b.BillStatus, b.Payout, bt, b.IdempotencyKey, b.TraceID, now, now)
	return err
}

// ListByRound 按回合ID查询待结算注单（结算快照读；回合已封盘，注单集不会再增长）
func ListByRound(ctx context.Context, exec sqlx.ExtContext, roundID int64) ([]Bet, error) {
	sqlStr := `SELECT bill_no, round_id, user_id, username, bet_number, bet_amount, bill_status,
		payout, bet_time, idempotency_key, trace_id, created_at, updated_at
		FROM bets WHERE round_id = ? AND bill_status = 1 ORDER BY bill_no ASC`
	var bets []Bet
	if err := sqlx.SelectContext(ctx, exec, &bets, sqlStr, roundID); err != nil {
		return nil, err
	}
	return bets, nil
}

// UpdateSettlement 写入注单的派彩与结算状态（每张注单只结算一次）
// 仅当注单仍为待结算(bill_status=1)时生效，返回受影响行数
func UpdateSettlement(ctx context.Context, exec sqlx.ExtContext, billNo string, payout decimal.Decimal) (int64, error) {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE bets SET payout = ?, bill_status = 2, updated_at = ? WHERE bill_no = ? AND bill_status = 1`
	res, err := exec.ExecContext(ctx, sqlStr, payout, now, billNo)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BetRecord 投注记录（用于查询接口）
type BetRecord struct {
	BillNo     string          `db:"bill_no" json:"bill_no"`         // 注单号
	RoundID    int64           `db:"round_id" json:"round_id"`       // 回合ID
	BetNumber  int             `db:"bet_number" json:"bet_number"`   // 所押数字
	BetAmount  decimal.Decimal `db:"bet_amount" json:"bet_amount"`   // 投注金额
	BillStatus int8            `db:"bill_status" json:"bill_status"` // 结算状态：1=待结算 2=已结算
	Payout     decimal.Decimal `db:"payout" json:"payout"`           // 派彩金额
	BetTime    int64           `db:"bet_time" json:"bet_time"`       // 投注时间（毫秒时间戳）
}

var goquMySQL = goqu.Dialect("mysql")

// ListPlayerBets 查询玩家的投注记录（最近 N 条，按下注时间倒序）
// roundID 为 0 时查询所有回合
func ListPlayerBets(ctx context.Context, db *sqlx.DB, userID int64, roundID int64, limit int) ([]BetRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // 最多返回 100 条
	}

	ds := goquMySQL.From("bets").
		Select("bill_no", "round_id", "bet_number", "bet_amount", "bill_status", "payout", "bet_time").
		Where(goqu.C("user_id").Eq(userID))
	if roundID > 0 {
		ds = ds.Where(goqu.C("round_id").Eq(roundID))
	}
	ds = ds.Order(goqu.C("bet_time").Desc()).Limit(uint(limit)).Prepared(true)

	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}

	var records []BetRecord
	if err := db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, err
	}

	return records, nil
}
