package service

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"

	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"
)

func testGameConfig() *config.Config {
	var cfg config.Config
	cfg.ApplyDefaults()
	return &cfg
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func playerRow(userID int64, username, balance string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "username", "password_hash", "balance", "status", "created_at", "updated_at",
	}).AddRow(userID, username, "$2a$10$hash", balance, 1, int64(1), int64(1))
}

func TestDebitPlayer(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM players").WillReturnRows(playerRow(7, "alice", "1000.00"))
	mock.ExpectExec("UPDATE players SET balance").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").WillReturnResult(sqlmock.NewResult(1, 1))

	after, err := DebitPlayer(context.Background(), db, 7, decimal.NewFromInt(100), LedgerEntry{
		BillNo:  "PE1",
		RoundID: 3,
		BizType: model.LedgerBizBet,
		Remark:  "bet deduct",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if after.StringFixed(2) != "900.00" {
		t.Fatalf("after balance = %s, want 900.00", after.StringFixed(2))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDebitPlayerInsufficientBalance(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM players").WillReturnRows(playerRow(7, "alice", "50.00"))

	_, err := DebitPlayer(context.Background(), db, 7, decimal.NewFromInt(100), LedgerEntry{BillNo: "PE2"})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	// 余额不足时不得有任何写入
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDebitPlayerDisabled(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{
		"user_id", "username", "password_hash", "balance", "status", "created_at", "updated_at",
	}).AddRow(7, "alice", "$2a$10$hash", "1000.00", 0, int64(1), int64(1))
	mock.ExpectQuery("FROM players").WillReturnRows(rows)

	_, err := DebitPlayer(context.Background(), db, 7, decimal.NewFromInt(100), LedgerEntry{BillNo: "PE3"})
	if !errors.Is(err, ErrPlayerDisabled) {
		t.Fatalf("err = %v, want ErrPlayerDisabled", err)
	}
}

func TestCreditPlayer(t *testing.T) {
	db, mock := newMockDB(t)

	// 下注 100 中奖：900 余额再贷记 9 倍派彩 900 -> 1800
	mock.ExpectQuery("FROM players").WillReturnRows(playerRow(7, "alice", "900.00"))
	mock.ExpectExec("INSERT INTO wallet_ledger").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE players SET balance").WillReturnResult(sqlmock.NewResult(0, 1))

	after, err := CreditPlayer(context.Background(), db, 7, decimal.NewFromInt(900), LedgerEntry{
		BillNo:  "POPE1",
		RoundID: 3,
		BizType: model.LedgerBizPayout,
		Remark:  "bet payout",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if after.StringFixed(2) != "1800.00" {
		t.Fatalf("after balance = %s, want 1800.00", after.StringFixed(2))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreditPlayerDuplicateBillNo(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM players").WillReturnRows(playerRow(7, "alice", "1800.00"))
	mock.ExpectExec("INSERT INTO wallet_ledger").WillReturnError(&mysqlerr.MySQLError{Number: 1062})

	// 重复派彩：账本唯一键拦截，余额不被二次增加
	before, err := CreditPlayer(context.Background(), db, 7, decimal.NewFromInt(900), LedgerEntry{BillNo: "POPE1"})
	if !errors.Is(err, ErrLedgerDuplicate) {
		t.Fatalf("err = %v, want ErrLedgerDuplicate", err)
	}
	if before.StringFixed(2) != "1800.00" {
		t.Fatalf("balance = %s, want unchanged 1800.00", before.StringFixed(2))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPayoutMath(t *testing.T) {
	// 经典场景：初始 1000，下注 100，押中 9 倍派彩
	start := decimal.NewFromInt(1000)
	bet := decimal.NewFromInt(100)
	multiplier := decimal.NewFromInt(9)

	afterBet := start.Sub(bet)
	payout := bet.Mul(multiplier)
	final := afterBet.Add(payout)

	if final.StringFixed(2) != "1800.00" {
		t.Fatalf("final = %s, want 1800.00", final.StringFixed(2))
	}
	// 未押中：只损失本金
	if afterBet.StringFixed(2) != "900.00" {
		t.Fatalf("after bet = %s, want 900.00", afterBet.StringFixed(2))
	}
}

func TestValidateAmount(t *testing.T) {
	cfg := testGameConfig()

	if err := validateAmount(decimal.NewFromInt(100), cfg); err != nil {
		t.Fatalf("100 should be valid: %v", err)
	}
	if err := validateAmount(decimal.Zero, cfg); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero should be invalid, got %v", err)
	}
	if err := validateAmount(decimal.NewFromInt(-5), cfg); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative should be invalid, got %v", err)
	}
	if err := validateAmount(decimal.RequireFromString("0.001"), cfg); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("below minimum should be invalid, got %v", err)
	}
	if err := validateAmount(decimal.RequireFromString("1000001"), cfg); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("above maximum should be invalid, got %v", err)
	}
}

func TestGenerateBillNo(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		no := generateBillNo(100156)
		if len(no) < 4 || no[:2] != "PE" {
			t.Fatalf("bad bill no: %s", no)
		}
		seen[no] = true
	}
	if len(seen) < 90 {
		t.Fatalf("bill numbers not unique enough: %d distinct of 100", len(seen))
	}
}
