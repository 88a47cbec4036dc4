package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"novel-writer/internal/domain/repository"
	"novel-writer/pkg/tracer"
)

// TxManager database/sql 事务实现
type TxManager struct {
	client *Client
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction 在事务中执行操作
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// 已在事务中，直接执行
	if _, ok := repository.TxFromContext[*sql.Tx](ctx); ok {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "sqlite.WithTransaction")
	defer span.End()

	tx, err := m.client.db.BeginTx(ctx, nil)
	if err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(repository.ContextWithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Querier 查询接口（支持普通连接和事务）
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getQuerier(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := repository.TxFromContext[*sql.Tx](ctx); ok {
		return tx
	}
	return db
}
