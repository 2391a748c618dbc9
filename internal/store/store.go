// Package store 负责进程快照的持久化与周期采样
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Snapshot 一次进程状态采样的持久化记录
type Snapshot struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	PID              int32     `json:"pid"`
	ParentPID        int32     `json:"parent_pid"`
	Owner            string    `json:"owner,omitempty"`
	CPUs             int       `json:"cpus"`
	Goroutines       int       `json:"goroutines"`
	HeapUsed         int64     `json:"heap_used"`
	HeapCommitted    int64     `json:"heap_committed"`
	HeapMax          int64     `json:"heap_max"`
	NonHeapUsed      int64     `json:"non_heap_used"`
	NonHeapCommitted int64     `json:"non_heap_committed"`
}

// Open 打开 sqlite 快照库并完成建表
// path 为 ":memory:" 时使用内存库
func Open(path string, zapLogger *zap.Logger) (*gorm.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(zapLogger),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot store: %w", err)
	}
	return db, nil
}

// Close 关闭底层数据库连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// gormLogger 适配 zap.Logger 到 GORM logger
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) *gormLogger {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &gormLogger{
		zapLogger: zapLogger.Named("gorm"),
		logLevel:  logger.Warn,
	}
}

// LogMode 设置日志级别
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	next := *l
	next.logLevel = level
	return &next
}

// Info 记录信息日志
func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

// Warn 记录警告日志
func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

// Error 记录错误日志
func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// slowQueryThreshold 慢查询告警阈值
const slowQueryThreshold = 200 * time.Millisecond

// Trace 记录 SQL 执行跟踪，错误与慢查询分级输出
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil:
		l.zapLogger.Error("sql failed", append(fields, zap.Error(err))...)
	case elapsed > slowQueryThreshold:
		l.zapLogger.Warn("slow sql", fields...)
	case l.logLevel >= logger.Info:
		l.zapLogger.Debug("sql trace", fields...)
	}
}
