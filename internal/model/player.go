package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Player 玩家表
// 余额只允许通过 Ledger（service/ledger.go）的借记/贷记修改
// password_hash 对核心流程不透明（bcrypt，由 user service 管理）
type Player struct {
	ID           int64           `db:"user_id"`       // 自增ID（内部使用）
	Username     string          `db:"username"`      // 用户名（唯一）
	PasswordHash string          `db:"password_hash"` // 凭证哈希
	Balance      decimal.Decimal `db:"balance"`       // 余额（非负）
	Status       int8            `db:"status"`        // 状态: 1=正常 0=禁用
	CreatedAt    int64           `db:"created_at"`    // 创建时间（13位毫秒时间戳）
	UpdatedAt    int64           `db:"updated_at"`    // 更新时间（13位毫秒时间戳）
}

// GetPlayerByUsername 根据用户名查询玩家
func GetPlayerByUsername(ctx context.Context, db *sqlx.DB, username string) (*Player, error) {
	query := `SELECT user_id, username, password_hash, balance, status, created_at, updated_at
	          FROM players
	          WHERE username = ?
	          LIMIT 1`

	var p Player
	err := db.GetContext(ctx, &p, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get player by username failed",
			zap.String("username", username),
			zap.Error(err))
		return nil, err
	}

	return &p, nil
}

// GetPlayerByUsernameForUpdate 根据用户名查询玩家（加锁）
// 必须在事务中调用；同一玩家的余额变更由该行锁串行化
func GetPlayerByUsernameForUpdate(ctx context.Context, exec sqlx.ExtContext, username string) (*Player, error) {
	query := `SELECT user_id, username, password_hash, balance, status, created_at, updated_at
	          FROM players
	          WHERE username = ?
	          FOR UPDATE`

	var p Player
	err := sqlx.GetContext(ctx, exec, &p, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get player by username for update failed",
			zap.String("username", username),
			zap.Error(err))
		return nil, err
	}

	return &p, nil
}

// GetPlayerByIDForUpdate 根据内部ID查询玩家（加锁）
// 必须在事务中调用
func GetPlayerByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, userID int64) (*Player, error) {
	query := `SELECT user_id, username, password_hash, balance, status, created_at, updated_at
	          FROM players
	          WHERE user_id = ?
	          FOR UPDATE`

	var p Player
	err := sqlx.GetContext(ctx, exec, &p, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get player by id for update failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &p, nil
}

// Insert 插入玩家
func (p *Player) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO players (username, password_hash, balance, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, query,
		p.Username, p.PasswordHash, p.Balance, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	p.ID = id

	logger.Info("player created",
		zap.Int64("id", p.ID),
		zap.String("username", p.Username))

	return nil
}

// UpdatePlayerBalance 更新玩家余额（绝对值写入；调用方必须持有该行锁）
func UpdatePlayerBalance(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance decimal.Decimal) error {
	now := time.Now().UnixMilli()
	query := `UPDATE players SET balance = ?, updated_at = ? WHERE user_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	if err != nil {
		logger.Error("update player balance failed",
			zap.Int64("user_id", userID),
			zap.String("new_balance", newBalance.String()),
			zap.Error(err))
		return err
	}

	return nil
}

// GetPlayerBalance 获取玩家余额（非锁查询）
func GetPlayerBalance(ctx context.Context, db *sqlx.DB, username string) (decimal.Decimal, error) {
	query := `SELECT balance FROM players WHERE username = ? LIMIT 1`

	var balance decimal.Decimal
	err := db.GetContext(ctx, &balance, query, username)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Error("get player balance failed",
				zap.String("username", username),
				zap.Error(err))
		}
		return decimal.Zero, err
	}

	return balance, nil
}
