package worker

import (
	"context"
	"database/sql"
	"os"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	"github.com/mahirlaaj1310/Play-Earn/internal/service"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

func useMockGlobalDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	infmysql.UseDB(db)

	var cfg config.Config
	cfg.ApplyDefaults()
	config.Set(&cfg)
	return mock
}

func closedRoundRow(roundID int64, winning int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"round_id", "start_at", "ends_at", "game_status", "winning_number", "is_settled", "closed_at", "created_at", "updated_at",
	}).AddRow(roundID, int64(1000), int64(61_000), 2, winning, 0, int64(61_000), int64(1000), int64(1000))
}

// 运行期遗留的已封盘未结算回合必须在下一个 tick 被补结，而不是等进程重启
func TestTickResumesUnsettledClosedRound(t *testing.T) {
	mock := useMockGlobalDB(t)

	// 扫到 status=2, is_settled=0 的遗留回合
	mock.ExpectQuery("is_settled = 0").WillReturnRows(closedRoundRow(42, 5))

	// 续做结算：沿用已落定号码，不重新开奖
	mock.ExpectBegin()
	mock.ExpectQuery("FROM game_rounds WHERE round_id").WillReturnRows(closedRoundRow(42, 5))
	mock.ExpectRollback()
	mock.ExpectQuery("FROM bets").WillReturnRows(sqlmock.NewRows([]string{
		"bill_no", "round_id", "user_id", "username", "bet_number", "bet_amount",
		"bill_status", "payout", "bet_time", "idempotency_key", "trace_id", "created_at", "updated_at",
	}))
	mock.ExpectBegin()
	mock.ExpectExec("SET is_settled = 1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE settlement_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 结算后轮转出下一回合
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO game_rounds").WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// 无更多遗留回合，也无过期开放回合；开放回合已就位
	mock.ExpectQuery("is_settled = 0").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("ends_at <=").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("ORDER BY round_id DESC").WillReturnRows(sqlmock.NewRows([]string{
		"round_id", "start_at", "ends_at", "game_status", "winning_number", "is_settled", "closed_at", "created_at", "updated_at",
	}).AddRow(int64(43), int64(61_000), int64(121_000), 1, 0, 0, int64(0), int64(61_000), int64(61_000)))

	tick(context.Background(), service.NewResolverService())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
