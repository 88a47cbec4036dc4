package postgres

import (
	"context"

	"gorm.io/gorm"

	"novel-writer/internal/domain/repository"
)

// TxManager 基于 gorm 的事务实现
type TxManager struct {
	client *Client
}

func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := repository.TxFromContext[*gorm.DB](ctx); ok {
		return fn(ctx)
	}
	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.ContextWithTx(ctx, tx))
	})
}

// getDB 事务中返回事务句柄，否则返回带 ctx 的连接
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := repository.TxFromContext[*gorm.DB](ctx); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
