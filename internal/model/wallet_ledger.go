package model

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// 说明：金额为非负；方向由 before_amount/after_amount 与 biz_type 推导
// biz_type: 1=bet 下注扣款 2=payout 派彩 3=refund 退款 4=deposit 注册赠送
// 同时冗余 biz_type_str 便于查询
// bill_no 唯一：派彩补偿重试依赖该唯一键保证"同一注单只派彩一次"
type WalletLedger struct {
	ID           int64           `db:"id"`
	UserID       int64           `db:"user_id"`
	BizType      int             `db:"biz_type"`
	BizTypeStr   string          `db:"biz_type_str"`
	Amount       decimal.Decimal `db:"amount"`
	BeforeAmount decimal.Decimal `db:"before_amount"`
	AfterAmount  decimal.Decimal `db:"after_amount"`
	BillNo       string          `db:"bill_no"`
	RoundID      int64           `db:"round_id"`
	Remark       string          `db:"remark"`
	TraceID      string          `db:"trace_id"`
	CreatedAt    int64           `db:"created_at"`
}

const (
	LedgerBizBet     = 1
	LedgerBizPayout  = 2
	LedgerBizRefund  = 3
	LedgerBizDeposit = 4
)

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	code := l.BizType
	str := l.BizTypeStr
	if code == 0 && str != "" {
		switch strings.ToLower(str) {
		case "bet":
			code = LedgerBizBet
		case "payout":
			code = LedgerBizPayout
		case "refund":
			code = LedgerBizRefund
		case "deposit":
			code = LedgerBizDeposit
		}
	}
	if str == "" && code != 0 {
		switch code {
		case LedgerBizBet:
			str = "bet"
		case LedgerBizPayout:
			str = "payout"
		case LedgerBizRefund:
			str = "refund"
		case LedgerBizDeposit:
			str = "deposit"
		}
	}

	sqlStr := `INSERT INTO wallet_ledger (user_id, biz_type, biz_type_str, amount, before_amount, after_amount, bill_no, round_id, remark, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, l.UserID, code, str, l.Amount, l.BeforeAmount, l.AfterAmount, l.BillNo, l.RoundID, l.Remark, l.TraceID, now)
	return err
}
