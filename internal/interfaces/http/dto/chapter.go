package dto

import (
	"time"

	"novel-writer/internal/domain/entity"
)

// ChapterResponse 章节详情
type ChapterResponse struct {
	Number             int                        `json:"number"`
	Title              string                     `json:"title"`
	Content            string                     `json:"content"`
	Summary            string                     `json:"summary,omitempty"`
	WordCount          int                        `json:"word_count"`
	Attempts           int                        `json:"attempts"`
	GenerationMetadata *entity.GenerationMetadata `json:"generation_metadata,omitempty"`
	CommittedAt        time.Time                  `json:"committed_at"`
}

// ChapterListItem 章节列表项，不含正文
type ChapterListItem struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	WordCount   int       `json:"word_count"`
	Attempts    int       `json:"attempts"`
	CommittedAt time.Time `json:"committed_at"`
}

// ToChapterResponse 转换章节详情
func ToChapterResponse(ch *entity.Chapter) *ChapterResponse {
	return &ChapterResponse{
		Number:             ch.Number,
		Title:              ch.Title,
		Content:            ch.Content,
		Summary:            ch.Summary,
		WordCount:          ch.WordCount,
		Attempts:           ch.Attempts,
		GenerationMetadata: ch.GenerationMetadata,
		CommittedAt:        ch.CommittedAt,
	}
}

// ToChapterList 转换章节列表
func ToChapterList(chapters []*entity.Chapter) []*ChapterListItem {
	items := make([]*ChapterListItem, 0, len(chapters))
	for _, ch := range chapters {
		items = append(items, &ChapterListItem{
			Number:      ch.Number,
			Title:       ch.Title,
			Summary:     ch.Summary,
			WordCount:   ch.WordCount,
			Attempts:    ch.Attempts,
			CommittedAt: ch.CommittedAt,
		})
	}
	return items
}
