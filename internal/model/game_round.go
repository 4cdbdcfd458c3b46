package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// GameRound 对应 game_rounds 表
// 说明：时间为毫秒时间戳；round_id 为自增主键（单调且唯一）
// game_status: 1=open 下注中 2=closed 已封盘开奖 3=settled 已结算
// winning_number: 0=未开奖；封盘时一次性写入 1..N，之后不再变更
// 不变量：winning_number != 0 当且仅当 game_status >= 2
type GameRound struct {
	RoundID       int64 `db:"round_id"`
	StartAt       int64 `db:"start_at"`
	EndsAt        int64 `db:"ends_at"`
	GameStatus    int8  `db:"game_status"`
	WinningNumber int   `db:"winning_number"`
	IsSettled     int8  `db:"is_settled"` // 是否已结算: 0=未结算 1=已结算（防止重复结算）
	ClosedAt      int64 `db:"closed_at"`
	CreatedAt     int64 `db:"created_at"`
	UpdatedAt     int64 `db:"updated_at"`
}

const roundColumns = `round_id, start_at, ends_at, game_status, winning_number, is_settled, closed_at, created_at, updated_at`

// InsertOpenRoundIfAbsent 仅当不存在开放回合时创建新回合并返回 round_id
// 存在性判定与插入为同一条语句，并发开局（时钟兜底与结算轮转同时触发）只会成功一个；
// 未插入时返回 0，调用方回查既有开放回合
func InsertOpenRoundIfAbsent(ctx context.Context, exec sqlx.ExtContext, startAt, endsAt int64) (int64, error) {
	now := time.Now().UnixMilli()
	sqlIns := `INSERT INTO game_rounds (start_at, ends_at, game_status, winning_number, is_settled, closed_at, created_at, updated_at)
	           SELECT ?, ?, 1, 0, 0, 0, ?, ? FROM DUAL
	           WHERE NOT EXISTS (SELECT 1 FROM game_rounds WHERE game_status = 1)`
	res, err := exec.ExecContext(ctx, sqlIns, startAt, endsAt, now, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return res.LastInsertId()
}

// GetOpenRound 查询当前开放回合（无锁读取）；无开放回合时返回 sql.ErrNoRows
func GetOpenRound(ctx context.Context, exec sqlx.ExtContext) (*GameRound, error) {
	sqlStr := `SELECT ` + roundColumns + ` FROM game_rounds WHERE game_status = 1 ORDER BY round_id DESC LIMIT 1`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetOpenRoundForUpdate 查询当前开放回合并加锁
// 投注准入与封盘结算都从这把行锁进入，保证两者互斥
func GetOpenRoundForUpdate(ctx context.Context, exec sqlx.ExtContext) (*GameRound, error) {
	sqlStr := `SELECT ` + roundColumns + ` FROM game_rounds WHERE game_status = 1 ORDER BY round_id DESC LIMIT 1 FOR UPDATE`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundForUpdate 按回合ID查询并加锁（用于投注时校验时间窗口与封盘结算）
func GetRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*GameRound, error) {
	sqlStr := `SELECT ` + roundColumns + ` FROM game_rounds WHERE round_id = ? FOR UPDATE`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRound 按回合ID查询（不加锁）
func GetRound(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*GameRound, error) {
	sqlStr := `SELECT ` + roundColumns + ` FROM game_rounds WHERE round_id = ?`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// CloseRound 将回合置为已封盘并一次性写入开奖号码
// 仅当当前仍为 open 时生效；返回受影响行数供调用方判断是否竞争失败
func CloseRound(ctx context.Context, exec sqlx.ExtContext, roundID int64, winningNumber int, closedAt int64) (int64, error) {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE game_rounds SET game_status = 2, winning_number = ?, closed_at = ?, updated_at = ?
	           WHERE round_id = ? AND game_status = 1`
	res, err := exec.ExecContext(ctx, sqlStr, winningNumber, closedAt, now, roundID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkRoundSettled 标记回合为已结算
func MarkRoundSettled(ctx context.Context, exec sqlx.ExtContext, roundID int64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE game_rounds SET is_settled = 1, game_status = 3, updated_at = ? WHERE round_id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, now, roundID)
	return err
}

// ListRecentWinningNumbers 查询最近 N 局的开奖号码（按回合ID倒序返回）
// 调用方负责翻转为“最新在后”的展示顺序
func ListRecentWinningNumbers(ctx context.Context, exec sqlx.ExtContext, limit int) ([]int, error) {
	if limit <= 0 {
		limit = 20
	}
	sqlStr := `SELECT winning_number FROM game_rounds WHERE game_status >= 2 ORDER BY round_id DESC LIMIT ?`
	var nums []int
	if err := sqlx.SelectContext(ctx, exec, &nums, sqlStr, limit); err != nil {
		return nil, err
	}
	return nums, nil
}

// GetExpiredOpenRound 查询已过截止时间但仍为 open 的回合（回合时钟使用）
func GetExpiredOpenRound(ctx context.Context, exec sqlx.ExtContext, nowMs int64) (*GameRound, error) {
	sqlStr := `SELECT ` + roundColumns + ` FROM game_rounds WHERE game_status = 1 AND ends_at <= ? ORDER BY round_id ASC LIMIT 1`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, nowMs); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetUnsettledClosedRound 查询已封盘但未结算的回合（进程重启后恢复结算用）
func GetUnsettledClosedRound(ctx context.Context, exec sqlx.ExtContext) (*GameRound, error) {
	sqlStr := `SELECT ` + roundColumns + ` FROM game_rounds WHERE game_status = 2 AND is_settled = 0 ORDER BY round_id ASC LIMIT 1`
	var r GameRound
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr); err != nil {
		return nil, err
	}
	return &r, nil
}
