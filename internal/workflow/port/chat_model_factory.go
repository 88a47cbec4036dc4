// Package port 工作流层依赖的外部能力
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按 provider 名取得 ChatModel，name 为空时使用默认 provider。
// 缺少配置或凭据属于永久错误，调用方不应重试
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}
