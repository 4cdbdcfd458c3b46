package common

import (
	"time"

	"github.com/mahirlaaj1310/Play-Earn/common/logger"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// 初始化master db
func InitDB(dsn string, maxIdleConn, maxOpenConn int) *sqlx.DB {

	db, err := sqlx.Connect("mysql", dsn+"&parseTime=true&loc=Local")
	if err != nil {
		logger.Fatalf("InitDB sqlx.Connect", zap.Error(err))
	}

	// 连接池参数
	db.SetMaxOpenConns(maxOpenConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(2 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// 会话级超时，降低锁等待时长
	if _, err := db.Exec("SET SESSION innodb_lock_wait_timeout = ?", 5); err != nil {
		logger.Warn("SET innodb_lock_wait_timeout failed", zap.Error(err))
	}

	if err := db.Ping(); err != nil {
		logger.Fatalf("InitDB failed:", zap.Error(err))
	}

	return db
}
