package model

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func TestCloseRoundGuard(t *testing.T) {
	db, mock := newMockDB(t)

	// 仅开放状态可封盘：受影响行数 1
	mock.ExpectExec("UPDATE game_rounds SET").
		WithArgs(7, int64(1700000000000), sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := CloseRound(context.Background(), db, 42, 7, 1700000000000)
	if err != nil {
		t.Fatalf("close round: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	// 已封盘的回合重复封盘：CAS 不命中，受影响行数 0
	mock.ExpectExec("UPDATE game_rounds SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err = CloseRound(context.Background(), db, 42, 9, 1700000000001)
	if err != nil {
		t.Fatalf("close round repeat: %v", err)
	}
	if n != 0 {
		t.Fatalf("repeat close rows affected = %d, want 0", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateSettlementOnce(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE bets SET payout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := UpdateSettlement(context.Background(), db, "PE1", decimal.NewFromInt(900))
	if err != nil {
		t.Fatalf("update settlement: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	// 已结算注单再次结算：bill_status 守护不命中
	mock.ExpectExec("UPDATE bets SET payout").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err = UpdateSettlement(context.Background(), db, "PE1", decimal.NewFromInt(900))
	if err != nil {
		t.Fatalf("update settlement repeat: %v", err)
	}
	if n != 0 {
		t.Fatalf("repeat settlement rows affected = %d, want 0", n)
	}
}

func TestInsertOpenRoundIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)

	// 无开放回合：插入成功并返回新回合ID
	mock.ExpectExec("INSERT INTO game_rounds").
		WithArgs(int64(1000), int64(61000), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(8, 1))

	id, err := InsertOpenRoundIfAbsent(context.Background(), db, 1000, 61000)
	if err != nil {
		t.Fatalf("insert open round: %v", err)
	}
	if id != 8 {
		t.Fatalf("round id = %d, want 8", id)
	}

	// 已有开放回合：NOT EXISTS 守护不命中，返回 0 且不产生新回合
	mock.ExpectExec("INSERT INTO game_rounds").
		WillReturnResult(sqlmock.NewResult(0, 0))

	id, err = InsertOpenRoundIfAbsent(context.Background(), db, 2000, 62000)
	if err != nil {
		t.Fatalf("insert with existing open round: %v", err)
	}
	if id != 0 {
		t.Fatalf("round id = %d, want 0 when an open round exists", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListRecentWinningNumbers(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"winning_number"}).AddRow(3).AddRow(9).AddRow(1)
	mock.ExpectQuery("FROM game_rounds").WillReturnRows(rows)

	nums, err := ListRecentWinningNumbers(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("list winning numbers: %v", err)
	}
	// 模型层按时间倒序返回，最近的在最前
	if len(nums) != 3 || nums[0] != 3 || nums[1] != 9 || nums[2] != 1 {
		t.Fatalf("nums = %v, want [3 9 1]", nums)
	}
}
