package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// IdempotencyKey 对应 idempotency_keys 表
// 仅用于幂等插入（唯一键: idempotency_key）
type IdempotencyKey struct {
	ID             int64  `db:"id"`
	IdempotencyKey string `db:"idempotency_key"`
	Purpose        string `db:"purpose"`
	Ref            string `db:"ref"`
	CreatedAt      int64  `db:"created_at"`
}

// Insert 插入一条幂等键记录
func (k *IdempotencyKey) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO idempotency_keys (idempotency_key, purpose, ref, created_at) VALUES (?, ?, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, k.IdempotencyKey, k.Purpose, k.Ref, now)
	return err
}

// SelectRefByIdemKey 按幂等键查询 ref（例如 bill_no）
func SelectRefByIdemKey(ctx context.Context, db *sqlx.DB, key string) (string, error) {
	sqlStr := "SELECT ref FROM idempotency_keys WHERE idempotency_key = ? LIMIT 1"
	var ref string
	if err := sqlx.GetContext(ctx, db, &ref, sqlStr, key); err != nil {
		return "", err
	}
	return ref, nil
}
