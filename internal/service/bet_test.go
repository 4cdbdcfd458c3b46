package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
)

// useMockGlobalDB 将 sqlmock 注入全局句柄，驱动走 infmysql.SQLX() 的服务层流程
func useMockGlobalDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	infmysql.UseDB(db)
	config.Set(testGameConfig())
	return mock
}

func roundRow(roundID, startAt, endsAt int64, status int8, winning int, settled int8, closedAt int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"round_id", "start_at", "ends_at", "game_status", "winning_number", "is_settled", "closed_at", "created_at", "updated_at",
	}).AddRow(roundID, startAt, endsAt, status, winning, settled, closedAt, startAt, startAt)
}

func TestPlaceBetNoActiveRound(t *testing.T) {
	mock := useMockGlobalDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", BetNumber: 5, BetAmount: "100", IdempotencyKey: "k-no-round",
	})
	if !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("err = %v, want ErrNoActiveRound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceBetDeadlineAuthoritative(t *testing.T) {
	mock := useMockGlobalDB(t)

	// 回合状态位仍为 open，但 ends_at 已过：以截止时刻为准拒绝
	now := time.Now().UnixMilli()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now-120_000, now-60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", BetNumber: 5, BetAmount: "100", IdempotencyKey: "k-deadline",
	})
	if !errors.Is(err, ErrBetWindowClosed) {
		t.Fatalf("err = %v, want ErrBetWindowClosed", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceBetClaimedRoundMismatch(t *testing.T) {
	mock := useMockGlobalDB(t)
	now := time.Now().UnixMilli()

	// 声明历史回合：按窗口已关闭处理
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now, now+60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", RoundID: 41, BetNumber: 5, BetAmount: "100", IdempotencyKey: "k-old-round",
	})
	if !errors.Is(err, ErrBetWindowClosed) {
		t.Fatalf("claimed old round: err = %v, want ErrBetWindowClosed", err)
	}

	// 声明尚不存在的回合：按无开放回合处理
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now, now+60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err = NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", RoundID: 43, BetNumber: 5, BetAmount: "100", IdempotencyKey: "k-future-round",
	})
	if !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("claimed future round: err = %v, want ErrNoActiveRound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceBetInvalidNumber(t *testing.T) {
	mock := useMockGlobalDB(t)
	now := time.Now().UnixMilli()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now, now+60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", BetNumber: 11, BetAmount: "100", IdempotencyKey: "k-bad-number",
	})
	if !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("err = %v, want ErrInvalidNumber", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceBetMalformedAmount(t *testing.T) {
	mock := useMockGlobalDB(t)
	now := time.Now().UnixMilli()

	// 解析失败的金额按金额非法拒绝，不向调用方泄露解析错误
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now, now+60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", BetNumber: 5, BetAmount: "abc", IdempotencyKey: "k-bad-amount",
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceBetRejectionPriority(t *testing.T) {
	mock := useMockGlobalDB(t)
	now := time.Now().UnixMilli()

	// 同时违反窗口、数字、金额三条规则：按优先级返回窗口已关闭
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now-120_000, now-60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", BetNumber: 99, BetAmount: "abc", IdempotencyKey: "k-priority",
	})
	if !errors.Is(err, ErrBetWindowClosed) {
		t.Fatalf("err = %v, want ErrBetWindowClosed to win over number/amount", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceBetInsufficientBalance(t *testing.T) {
	mock := useMockGlobalDB(t)
	now := time.Now().UnixMilli()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds").
		WillReturnRows(roundRow(42, now, now+60_000, 1, 0, 0, 0))
	mock.ExpectQuery("FROM players").WillReturnRows(playerRow(7, "alice", "50.00"))
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM players").WillReturnRows(playerRow(7, "alice", "50.00"))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBet(context.Background(), BetInput{
		Username: "alice", BetNumber: 5, BetAmount: "100", IdempotencyKey: "k-poor",
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
