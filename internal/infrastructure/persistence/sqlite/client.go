// Package sqlite 提供本地单文件存储实现，默认落在项目目录的 .novel/novel.db
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"novel-writer/pkg/tracer"
)

// openDB 便于测试替换
var openDB = sql.Open

// 每个新连接都会执行的 PRAGMA
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// Client SQLite 客户端
type Client struct {
	db   *sql.DB
	path string
}

// NewClient 打开（必要时创建）数据库文件并执行迁移
func NewClient(path string) (*Client, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}

	c := &Client{db: db, path: path}
	if err := c.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return c, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	// 写事务一开始就拿写锁，避免读升级写时的 SQLITE_BUSY
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// DB 获取底层连接池
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path 数据库文件路径
func (c *Client) Path() string {
	return c.path
}

// Close 关闭数据库连接
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping 检查数据库连接
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sqlite.Ping")
	defer span.End()
	return c.db.PingContext(ctx)
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

func (c *Client) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS chapters (
			id                  TEXT    PRIMARY KEY,
			project_id          TEXT    NOT NULL,
			number              INTEGER NOT NULL,
			title               TEXT    NOT NULL DEFAULT '',
			content             TEXT    NOT NULL,
			summary             TEXT    NOT NULL DEFAULT '',
			word_count          INTEGER NOT NULL DEFAULT 0,
			attempts            INTEGER NOT NULL DEFAULT 1,
			generation_metadata TEXT,
			committed_at        TEXT    NOT NULL,
			UNIQUE (project_id, number)
		);

		CREATE TABLE IF NOT EXISTS memory_facts (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT    NOT NULL UNIQUE,
			project_id     TEXT    NOT NULL,
			kind           TEXT    NOT NULL,
			subjects       TEXT    NOT NULL,
			content        TEXT    NOT NULL,
			chapter_number INTEGER NOT NULL,
			created_at     TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_memory_facts_project_chapter
			ON memory_facts (project_id, chapter_number, seq);

		CREATE TABLE IF NOT EXISTS run_locks (
			project_id TEXT    PRIMARY KEY,
			token      TEXT    NOT NULL,
			expires_at INTEGER NOT NULL
		);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}
