package mysql

import (
	"github.com/jmoiron/sqlx"
)

var sqlxDB *sqlx.DB

// SQLX 返回包装全局句柄的 *sqlx.DB；UseDB 注入之前为 nil
func SQLX() *sqlx.DB { return sqlxDB }
