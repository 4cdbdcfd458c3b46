package service

import (
	"context"
	"errors"
	"time"

	"github.com/mahirlaaj1310/Play-Earn/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// 钱包账务：玩家余额的唯一修改入口
// 借记/贷记都在调用方事务内执行，先对玩家行加锁再读改写，
// 同一玩家串行、不同玩家并行；余额永不为负。

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPlayerDisabled      = errors.New("player disabled")
	// ErrLedgerDuplicate 表示该 bill_no 的账务已入账（重试场景，不得重复记账）
	ErrLedgerDuplicate = errors.New("ledger entry already applied")
)

// LedgerEntry 账务元信息（账本冗余字段）
type LedgerEntry struct {
	BillNo  string
	RoundID int64
	BizType int
	Remark  string
	TraceID string
}

// DebitPlayer 借记：扣减玩家余额并写账本，返回扣减后的余额
// 余额不足时无任何副作用返回 ErrInsufficientBalance
// 必须在事务中调用
func DebitPlayer(ctx context.Context, exec sqlx.ExtContext, userID int64, amount decimal.Decimal, e LedgerEntry) (decimal.Decimal, error) {
	p, err := model.GetPlayerByIDForUpdate(ctx, exec, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if p.Status != 1 {
		return decimal.Zero, ErrPlayerDisabled
	}

	before := p.Balance
	if before.Cmp(amount) < 0 {
		return decimal.Zero, ErrInsufficientBalance
	}
	after := before.Sub(amount).Round(2)

	// 双保险：写入侧再带一次 balance >= amount 守护，余额永不为负
	if err := updateBalanceGuarded(ctx, exec, userID, after, amount); err != nil {
		return decimal.Zero, err
	}

	ledger := &model.WalletLedger{
		UserID:       userID,
		BizType:      e.BizType,
		Amount:       amount.Round(2),
		BeforeAmount: before.Round(2),
		AfterAmount:  after,
		BillNo:       e.BillNo,
		RoundID:      e.RoundID,
		Remark:       e.Remark,
		TraceID:      e.TraceID,
	}
	if err := ledger.Insert(ctx, exec); err != nil {
		if isDuplicateKeyError(err) {
			return decimal.Zero, ErrLedgerDuplicate
		}
		return decimal.Zero, err
	}

	return after, nil
}

// CreditPlayer 贷记：增加玩家余额并写账本，返回增加后的余额
// 账本 bill_no 唯一键先行占位：同一 bill_no 重试时返回 ErrLedgerDuplicate，
// 余额不会被二次增加（exactly-once 派彩依赖于此）
// 必须在事务中调用
func CreditPlayer(ctx context.Context, exec sqlx.ExtContext, userID int64, amount decimal.Decimal, e LedgerEntry) (decimal.Decimal, error) {
	p, err := model.GetPlayerByIDForUpdate(ctx, exec, userID)
	if err != nil {
		return decimal.Zero, err
	}

	before := p.Balance
	after := before.Add(amount).Round(2)

	ledger := &model.WalletLedger{
		UserID:       userID,
		BizType:      e.BizType,
		Amount:       amount.Round(2),
		BeforeAmount: before.Round(2),
		AfterAmount:  after,
		BillNo:       e.BillNo,
		RoundID:      e.RoundID,
		Remark:       e.Remark,
		TraceID:      e.TraceID,
	}
	// 先占账本唯一键，再动余额；冲突即已入账，直接返回
	if err := ledger.Insert(ctx, exec); err != nil {
		if isDuplicateKeyError(err) {
			return before, ErrLedgerDuplicate
		}
		return decimal.Zero, err
	}

	if err := model.UpdatePlayerBalance(ctx, exec, userID, after); err != nil {
		return decimal.Zero, err
	}

	return after, nil
}

// updateBalanceGuarded 带余额守护的扣减写入
func updateBalanceGuarded(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance, amount decimal.Decimal) error {
	sqlStr := `UPDATE players SET balance = ?, updated_at = ? WHERE user_id = ? AND balance >= ?`
	res, err := exec.ExecContext(ctx, sqlStr, newBalance, time.Now().UnixMilli(), userID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// isDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误（错误码 1062）
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var me *mysqlerr.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
