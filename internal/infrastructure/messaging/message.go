// Package messaging 把章节流水线事件发布到 Redis Stream，供外部订阅
package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stream 流名
type Stream string

// StreamChapterEvents 默认的章节事件流
const StreamChapterEvents Stream = "stream:novel:chapter-events"

// Stream 条目的字段名：type 便于消费者按类型过滤，data 是完整的 Envelope JSON
const (
	fieldType = "type"
	fieldData = "data"
)

// Envelope 流上每条事件的外层结构
type Envelope struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	ProjectID string            `json:"project_id"`
	Headers   map[string]string `json:"headers,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEnvelope 编码 payload
func NewEnvelope(id, eventType, projectID string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        id,
		Type:      eventType,
		ProjectID: projectID,
		Headers:   map[string]string{},
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// fields 转为 XADD 的字段
func (e *Envelope) fields() (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return map[string]any{fieldType: e.Type, fieldData: string(data)}, nil
}

// DecodeEnvelope 从 XRANGE/XREAD 读到的字段还原事件
func DecodeEnvelope(values map[string]any) (*Envelope, error) {
	data, ok := values[fieldData].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry has no %q field", fieldData)
	}
	var e Envelope
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("failed to decode stream entry: %w", err)
	}
	return &e, nil
}

// Decode 解析 payload
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
