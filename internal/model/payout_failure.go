package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// PayoutFailure 对应 payout_failures 表
// 记录重试耗尽后仍未完成的派彩，等待人工对账处理；绝不静默丢弃
type PayoutFailure struct {
	ID        int64           `db:"id"`
	RoundID   int64           `db:"round_id"`
	BillNo    string          `db:"bill_no"` // 关联注单号
	UserID    int64           `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"` // 应派未派金额
	LastError string          `db:"last_error"`
	Resolved  int8            `db:"resolved"` // 0=待处理 1=已人工处理
	TraceID   string          `db:"trace_id"`
	CreatedAt int64           `db:"created_at"`
}

// Insert 落一条派彩失败记录
func (f *PayoutFailure) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := `INSERT INTO payout_failures (round_id, bill_no, user_id, amount, last_error, resolved, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, 0, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, f.RoundID, f.BillNo, f.UserID, f.Amount, f.LastError, f.TraceID, now)
	return err
}

// ListUnresolvedPayoutFailures 查询待人工处理的派彩失败记录
func ListUnresolvedPayoutFailures(ctx context.Context, db *sqlx.DB, limit int) ([]PayoutFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	sqlStr := `SELECT id, round_id, bill_no, user_id, amount, last_error, resolved, trace_id, created_at
	           FROM payout_failures WHERE resolved = 0 ORDER BY id ASC LIMIT ?`
	var list []PayoutFailure
	if err := db.SelectContext(ctx, &list, sqlStr, limit); err != nil {
		return nil, err
	}
	return list, nil
}
