package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// SettlementLog 结算日志表（防止重复结算）
// round_id 唯一索引是封盘结算的第二道幂等防护
type SettlementLog struct {
	ID            int64           `db:"id"`             // 自增ID
	RoundID       int64           `db:"round_id"`       // 回合ID
	WinningNumber int             `db:"winning_number"` // 开奖号码
	TotalBets     int             `db:"total_bets"`     // 结算注单总数
	TotalPayout   decimal.Decimal `db:"total_payout"`   // 总派彩金额
	Operator      string          `db:"operator"`       // 操作人
	TraceID       string          `db:"trace_id"`       // 链路追踪ID
	CreatedAt     int64           `db:"created_at"`     // 创建时间（13位毫秒时间戳）
}

// CreateSettlementLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该回合已经结算过
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, log *SettlementLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO settlement_log (round_id, winning_number, total_bets, total_payout, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.RoundID, log.WinningNumber, log.TotalBets, log.TotalPayout, log.Operator, log.TraceID, log.CreatedAt)

	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}

// UpdateSettlementStats 回填结算日志的统计信息
func UpdateSettlementStats(ctx context.Context, exec sqlx.ExtContext, roundID int64, totalBets int, totalPayout decimal.Decimal) error {
	sqlStr := `UPDATE settlement_log SET total_bets = ?, total_payout = ? WHERE round_id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, totalBets, totalPayout, roundID)
	return err
}

// GetSettlementLog 查询结算日志
func GetSettlementLog(ctx context.Context, db *sqlx.DB, roundID int64) (*SettlementLog, error) {
	sqlStr := `SELECT id, round_id, winning_number, total_bets, total_payout, operator, trace_id, created_at
	           FROM settlement_log WHERE round_id = ? LIMIT 1`

	var log SettlementLog
	if err := db.GetContext(ctx, &log, sqlStr, roundID); err != nil {
		return nil, err
	}

	return &log, nil
}
