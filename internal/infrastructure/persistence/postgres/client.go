// Package postgres 提供 PostgreSQL 数据库访问层实现，供多项目共享的服务端部署使用
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"novel-writer/internal/config"
	"novel-writer/internal/domain/entity"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/tracer"
)

const (
	connectTimeout = 5 * time.Second
	slowQuery      = time.Second
)

// Client gorm 连接：章节、记忆事实与运行锁
type Client struct {
	db *gorm.DB
}

// DSN URL 形式的连接串，密码中的特殊字符会被转义
func DSN(cfg *config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// NewClient 打开连接池并 Ping，SQL 日志经 pkg/logger 输出，只记录慢查询与错误
func NewClient(ctx context.Context, cfg *config.PostgresConfig) (*Client, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.New(logger.Printf{Level: slog.LevelWarn, Component: "gorm"}, gormlogger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{db: db}, nil
}

// Migrate 建表与索引，重复执行无副作用
func (c *Client) Migrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.Migrate")
	defer span.End()

	if err := c.db.WithContext(ctx).AutoMigrate(&entity.Chapter{}, &entity.MemoryFact{}, &runLease{}); err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 供 /ready 探测
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.HealthCheck")
	defer span.End()

	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("postgres unavailable: %w", err)
	}
	return nil
}
