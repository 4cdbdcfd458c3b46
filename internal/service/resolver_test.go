package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func settlementLogRow(roundID int64, winning, totalBets int, totalPayout string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "round_id", "winning_number", "total_bets", "total_payout", "operator", "trace_id", "created_at",
	}).AddRow(1, roundID, winning, totalBets, totalPayout, "system", "t1", int64(1))
}

func TestCloseRoundIdempotentOnSettled(t *testing.T) {
	mock := useMockGlobalDB(t)

	// 已结算回合重复封盘：不重新开奖、不触碰任何注单，返回既有结算结果
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds WHERE round_id").
		WillReturnRows(roundRow(42, 1000, 61_000, 3, 7, 1, 61_000))
	mock.ExpectRollback()
	mock.ExpectQuery("FROM settlement_log").
		WillReturnRows(settlementLogRow(42, 7, 3, "900.00"))

	out, err := NewResolverService().CloseRound(context.Background(), 42)
	if err != nil {
		t.Fatalf("repeat close: %v", err)
	}
	if out.WinningNumber != 7 {
		t.Fatalf("winning number = %d, want existing 7", out.WinningNumber)
	}
	if out.TotalBets != 3 || out.TotalPayout.StringFixed(2) != "900.00" {
		t.Fatalf("stats = %d/%s, want 3/900.00 from settlement log", out.TotalBets, out.TotalPayout.StringFixed(2))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCloseRoundBeforeDeadline(t *testing.T) {
	mock := useMockGlobalDB(t)

	// 未到截止时刻的开放回合不允许封盘
	now := time.Now().UnixMilli()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds WHERE round_id").
		WillReturnRows(roundRow(42, now, now+60_000, 1, 0, 0, 0))
	mock.ExpectRollback()

	_, err := NewResolverService().CloseRound(context.Background(), 42)
	if !errors.Is(err, ErrRoundStillOpen) {
		t.Fatalf("err = %v, want ErrRoundStillOpen", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
