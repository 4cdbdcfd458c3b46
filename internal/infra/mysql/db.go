package mysql

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// 全局 *sql.DB 句柄，进程启动时由 UseDB 注入一次
var db *sql.DB

// UseDB 注入外部初始化好的数据库句柄（common.InitDB 的返回值）并重建 sqlx 包装
func UseDB(d *sql.DB) {
	if d == nil {
		return
	}
	db = d
	sqlxDB = sqlx.NewDb(d, "mysql")
}

// DB 返回全局数据库句柄；未注入时为 nil
func DB() *sql.DB { return db }
