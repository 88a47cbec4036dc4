package dto

import (
	"time"

	"novel-writer/internal/domain/entity"
)

// MemoryFactResponse 记忆事实
type MemoryFactResponse struct {
	ID        string          `json:"id"`
	Kind      entity.FactKind `json:"kind"`
	Subjects  []string        `json:"subjects"`
	Content   string          `json:"content"`
	Chapter   int             `json:"chapter"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToMemoryFacts 转换记忆事实列表
func ToMemoryFacts(facts []*entity.MemoryFact) []*MemoryFactResponse {
	out := make([]*MemoryFactResponse, 0, len(facts))
	for _, f := range facts {
		out = append(out, &MemoryFactResponse{
			ID:        f.ID,
			Kind:      f.Kind,
			Subjects:  f.Subjects,
			Content:   f.Content,
			Chapter:   f.Chapter,
			CreatedAt: f.CreatedAt,
		})
	}
	return out
}
