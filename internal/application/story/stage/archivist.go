package stage

import (
	"context"
	"strings"

	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/workflow/chain"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	"novel-writer/pkg/logger"
)

// ChapterArchive 判断某章是否已经归档过
type ChapterArchive interface {
	HasChapter(ctx context.Context, chapter int) (bool, error)
}

// ArchiveResult 提取结果，Facts 尚未写入存储
type ArchiveResult struct {
	Summary string
	Facts   []*entity.MemoryFact
	// Skipped 该章已有记忆事实，没有调用模型
	Skipped bool
}

// Archivist 从定稿中提取摘要与记忆事实
type Archivist struct {
	chain   *chain.ArchivistChain
	params  wfmodel.GenerationParams
	archive ChapterArchive
}

func NewArchivist(generator *wfnode.Generator, params wfmodel.GenerationParams, archive ChapterArchive) *Archivist {
	return &Archivist{chain: chain.NewArchivistChain(generator), params: params, archive: archive}
}

// Extract 已归档的章节直接跳过，同一次提取内重复的事实只保留一条
func (a *Archivist) Extract(ctx context.Context, sc *storycontext.StoryContext, text string) (*ArchiveResult, error) {
	archived, err := a.archive.HasChapter(ctx, sc.Chapter)
	if err != nil {
		return nil, err
	}
	if archived {
		logger.Info(ctx, "chapter already archived, skipping extraction", "chapter", sc.Chapter)
		return &ArchiveResult{Skipped: true}, nil
	}

	logger.Debug(ctx, "archivist stage started", "chapter", sc.Chapter)
	out, err := a.chain.Invoke(ctx, &wfmodel.ArchivistInput{
		GenerationParams: a.params,
		ChapterNumber:    sc.Chapter,
		ChapterTitle:     sc.Title(),
		RoleNames:        sc.RoleNames(),
		Content:          text,
	})
	if err != nil {
		return nil, wrapErr(NameArchivist, err)
	}

	res := &ArchiveResult{
		Summary: out.Summary,
		Facts:   toFacts(sc.ProjectID, sc.Chapter, out),
	}
	logger.Debug(ctx, "archivist stage finished", "chapter", sc.Chapter, "facts", len(res.Facts))
	return res, nil
}

func toFacts(projectID string, chapter int, out *wfmodel.ArchivistOutput) []*entity.MemoryFact {
	var facts []*entity.MemoryFact
	seen := make(map[string]struct{})
	add := func(kind entity.FactKind, content string, subjects []string) {
		content = strings.TrimSpace(content)
		subjects = wfnode.NormalizeNames(subjects)
		if content == "" || len(subjects) == 0 {
			return
		}
		f := entity.NewMemoryFact(projectID, chapter, kind, content, subjects...)
		key := f.DedupKey()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		facts = append(facts, f)
	}

	for _, it := range out.Events {
		add(entity.FactKindEvent, it.Content, it.Subjects)
	}
	for _, it := range out.CharacterStates {
		subjects := it.Subjects
		if name := strings.TrimSpace(it.Name); name != "" {
			subjects = []string{name}
		}
		state := it.State
		if strings.TrimSpace(state) == "" {
			state = it.Content
		}
		add(entity.FactKindCharacterState, state, subjects)
	}
	for _, it := range out.Relationships {
		add(entity.FactKindRelationship, it.Content, it.Subjects)
	}
	for _, it := range out.Foreshadowing {
		content := strings.TrimSpace(it.Content)
		switch strings.TrimSpace(it.Status) {
		case "resolved":
			content = entity.ForeshadowResolved + content
		case "planted":
			content = entity.ForeshadowPlanted + content
		}
		if strings.TrimSpace(it.Content) == "" {
			continue
		}
		add(entity.FactKindForeshadowing, content, it.Subjects)
	}
	return facts
}
