package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FactKind 记忆事实类型
type FactKind string

const (
	FactKindRelationship   FactKind = "relationship"
	FactKindForeshadowing  FactKind = "foreshadowing"
	FactKindEvent          FactKind = "event"
	FactKindCharacterState FactKind = "character-state"
)

// FactKinds 全部合法类型，按固定顺序
var FactKinds = []FactKind{
	FactKindRelationship,
	FactKindForeshadowing,
	FactKindEvent,
	FactKindCharacterState,
}

// Valid 是否为合法类型
func (k FactKind) Valid() bool {
	switch k {
	case FactKindRelationship, FactKindForeshadowing, FactKindEvent, FactKindCharacterState:
		return true
	}
	return false
}

// Supersedes 同键的新事实是否覆盖旧事实。事件是累积的，不互相覆盖
func (k FactKind) Supersedes() bool {
	return k != FactKindEvent
}

// 伏笔状态标记，写在内容开头
const (
	ForeshadowPlanted  = "【埋下】"
	ForeshadowResolved = "【回收】"
)

// ForeshadowThread 去掉状态标记后的伏笔内容，同一条伏笔线的埋下与回收共享它
func ForeshadowThread(content string) string {
	c := strings.TrimSpace(content)
	for _, marker := range []string{ForeshadowPlanted, ForeshadowResolved} {
		if rest, ok := strings.CutPrefix(c, marker); ok {
			return strings.TrimSpace(rest)
		}
	}
	return c
}

// Label 中文标签
func (k FactKind) Label() string {
	switch k {
	case FactKindRelationship:
		return "关系"
	case FactKindForeshadowing:
		return "伏笔"
	case FactKindEvent:
		return "事件"
	case FactKindCharacterState:
		return "人物状态"
	default:
		return string(k)
	}
}

// MemoryFact 记忆事实，只追加不修改
type MemoryFact struct {
	// Seq 存储分配的插入序号，同章节内按它排序
	Seq       int64     `json:"seq" gorm:"primaryKey;autoIncrement"`
	ID        string    `json:"id" gorm:"type:uuid;uniqueIndex;not null"`
	ProjectID string    `json:"project_id" gorm:"type:varchar(64);not null;index:idx_memory_facts_project_chapter"`
	Kind      FactKind  `json:"kind" gorm:"type:varchar(32);not null"`
	Subjects  []string  `json:"subjects" gorm:"type:jsonb;serializer:json;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Chapter   int       `json:"chapter" gorm:"column:chapter_number;not null;index:idx_memory_facts_project_chapter"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (MemoryFact) TableName() string {
	return "memory_facts"
}

// NewMemoryFact 创建记忆事实
func NewMemoryFact(projectID string, chapter int, kind FactKind, content string, subjects ...string) *MemoryFact {
	return &MemoryFact{
		ProjectID: projectID,
		Kind:      kind,
		Subjects:  subjects,
		Content:   content,
		Chapter:   chapter,
	}
}

// SubjectKey 主体的规范化键，与顺序无关
func (f *MemoryFact) SubjectKey() string {
	subjects := make([]string, 0, len(f.Subjects))
	for _, s := range f.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	sort.Strings(subjects)
	return strings.Join(subjects, "|")
}

// SupersedeKey 新事实覆盖同键旧事实。一般按 (kind, subject)；
// 伏笔按 (subject, 伏笔线)，同一主体上的多条伏笔各自独立
func (f *MemoryFact) SupersedeKey() string {
	key := string(f.Kind) + "#" + f.SubjectKey()
	if f.Kind == FactKindForeshadowing {
		key += "#" + ForeshadowThread(f.Content)
	}
	return key
}

// DedupKey 完全相同的事实共享同一键
func (f *MemoryFact) DedupKey() string {
	return string(f.Kind) + "#" + f.SubjectKey() + "#" + strings.TrimSpace(f.Content)
}

// HasSubject 是否涉及某主体
func (f *MemoryFact) HasSubject(name string) bool {
	for _, s := range f.Subjects {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// Render 渲染为一行文本，上下文预算按这一行计算
func (f *MemoryFact) Render() string {
	return fmt.Sprintf("[第%d章][%s] %s：%s", f.Chapter, f.Kind.Label(), strings.Join(f.Subjects, "、"), f.Content)
}
