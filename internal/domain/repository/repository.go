// Package repository 定义数据访问层接口
package repository

import "context"

// Transactor 章节提交与记忆写入必须在同一事务内完成
type Transactor interface {
	// WithTransaction fn 返回错误时回滚；ctx 已处于事务中时直接复用
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// ContextWithTx 把驱动相关的事务句柄挂到 ctx 上
func ContextWithTx[T any](ctx context.Context, tx T) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext 取出事务句柄，类型不符或不在事务中时 ok 为 false
func TxFromContext[T any](ctx context.Context) (tx T, ok bool) {
	tx, ok = ctx.Value(txKey{}).(T)
	return tx, ok
}

// SortOrder 按章节号排序的方向
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)
