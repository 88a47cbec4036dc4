// Package fakellm 提供按工作流脚本化的 ChatModel，用于测试
package fakellm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "novel-writer/internal/domain/service"
)

// Reply 一次预设回复
type Reply struct {
	Content string
	Err     error
}

// Text 成功回复
func Text(content string) Reply { return Reply{Content: content} }

// Fail 失败回复
func Fail(err error) Reply { return Reply{Err: err} }

// Call 一次调用记录
type Call struct {
	Workflow string
	Messages []*schema.Message
	Options  *model.Options
}

// Prompt 把消息拼成一段文本，便于断言
func (c Call) Prompt() string {
	parts := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// Model 按工作流名取预设回复。队列按顺序消费，最后一条会一直重复。
type Model struct {
	mu       sync.Mutex
	scripts  map[string][]Reply
	handlers map[string]func(msgs []*schema.Message) (string, error)
	calls    []Call
}

// New 创建 Model
func New() *Model {
	return &Model{
		scripts:  make(map[string][]Reply),
		handlers: make(map[string]func(msgs []*schema.Message) (string, error)),
	}
}

// Script 为工作流追加预设回复
func (m *Model) Script(workflow string, replies ...Reply) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[workflow] = append(m.scripts[workflow], replies...)
	return m
}

// Handle 为工作流设置动态回复，优先级低于 Script
func (m *Model) Handle(workflow string, fn func(msgs []*schema.Message) (string, error)) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[workflow] = fn
	return m
}

// Generate 实现 model.BaseChatModel
func (m *Model) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	workflow := llmctx.WorkflowFromContext(ctx)

	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Workflow: workflow,
		Messages: input,
		Options:  model.GetCommonOptions(nil, opts...),
	})
	var reply *Reply
	if queue := m.scripts[workflow]; len(queue) > 0 {
		r := queue[0]
		if len(queue) > 1 {
			m.scripts[workflow] = queue[1:]
		}
		reply = &r
	}
	handler := m.handlers[workflow]
	m.mu.Unlock()

	if reply == nil {
		if handler == nil {
			return nil, fmt.Errorf("fakellm: no reply scripted for workflow %q", workflow)
		}
		content, err := handler(input)
		reply = &Reply{Content: content, Err: err}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: reply.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage:        &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		},
	}, nil
}

// Stream 实现 model.BaseChatModel，一次性返回完整消息
func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls 全部调用记录
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor 某工作流的调用记录
func (m *Model) CallsFor(workflow string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Workflow == workflow {
			out = append(out, c)
		}
	}
	return out
}

// Factory 总是返回同一个模型的工厂
type Factory struct {
	Model model.BaseChatModel
	Err   error
}

// Get 实现 ChatModelFactory
func (f *Factory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Model, nil
}
