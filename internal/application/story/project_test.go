package story

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-writer/internal/domain/entity"
	"novel-writer/internal/infrastructure/persistence/sqlite"
	"novel-writer/internal/infrastructure/project"
	apperrors "novel-writer/pkg/errors"
)

func newTestProject(t *testing.T) (*Project, *project.Files) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, project.OutlineMarkdown),
		[]byte("## 第一章：开端\n回乡。\n\n## 第二章：夜雨\n夜探旧宅。\n\n## 第三章：对峙\n"), 0o644))

	info, err := entity.NewProject(root)
	require.NoError(t, err)
	client, err := sqlite.NewClient(filepath.Join(root, project.DataDir, "novel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	files := project.NewFiles(root)
	return NewProject(ProjectDeps{
		Info:     info,
		Source:   files,
		Chapters: sqlite.NewChapterRepository(client),
		Facts:    sqlite.NewMemoryFactRepository(client),
		Tx:       sqlite.NewTxManager(client),
		Exporter: files,
	}), files
}

func fact(kind entity.FactKind, chapter int, subject, content string) *entity.MemoryFact {
	return &entity.MemoryFact{Kind: kind, Chapter: chapter, Subjects: []string{subject}, Content: content}
}

func TestSaveChapterCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	p, files := newTestProject(t)

	ch := entity.NewChapter(p.ProjectID(), 1, "开端", "林远回到故乡。")
	require.NoError(t, p.SaveChapter(ctx, ch, []*entity.MemoryFact{
		fact(entity.FactKindEvent, 1, "林远", "回到故乡"),
		fact(entity.FactKindCharacterState, 1, "林远", "疲惫"),
	}))

	got, err := p.LoadChapter(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "林远回到故乡。", got.Content)

	has, err := p.Memory().HasChapter(ctx, 1)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = os.Stat(files.ChapterPath(1))
	assert.NoError(t, err)

	next, err := p.NextChapter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestSaveChapterRollsBackOnBadFact(t *testing.T) {
	ctx := context.Background()
	p, files := newTestProject(t)

	ch := entity.NewChapter(p.ProjectID(), 1, "开端", "正文")
	err := p.SaveChapter(ctx, ch, []*entity.MemoryFact{
		fact(entity.FactKindEvent, 1, "林远", "回到故乡"),
		fact(entity.FactKindEvent, 1, "林远", "   "),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := p.LoadChapter(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	has, err := p.Memory().HasChapter(ctx, 1)
	require.NoError(t, err)
	assert.False(t, has)

	_, statErr := os.Stat(files.ChapterPath(1))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveChapterRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProject(t)

	require.NoError(t, p.SaveChapter(ctx, entity.NewChapter(p.ProjectID(), 1, "开端", "一"), nil))
	err := p.SaveChapter(ctx, entity.NewChapter(p.ProjectID(), 1, "开端", "二"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestDeleteChapter(t *testing.T) {
	ctx := context.Background()
	p, files := newTestProject(t)

	err := p.DeleteChapter(ctx, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	err = p.DeleteChapter(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrChapterNotFound)

	require.NoError(t, p.SaveChapter(ctx, entity.NewChapter(p.ProjectID(), 1, "开端", "一"),
		[]*entity.MemoryFact{fact(entity.FactKindEvent, 1, "林远", "回乡")}))
	require.NoError(t, p.SaveChapter(ctx, entity.NewChapter(p.ProjectID(), 2, "夜雨", "二"), nil))

	err = p.DeleteChapter(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, p.DeleteChapter(ctx, 2))
	require.NoError(t, p.DeleteChapter(ctx, 1))

	nums, err := p.ListCommittedChapters(ctx)
	require.NoError(t, err)
	assert.Empty(t, nums)
	_, statErr := os.Stat(files.ChapterPath(1))
	assert.True(t, os.IsNotExist(statErr))

	// 记忆事实保留
	has, err := p.Memory().HasChapter(ctx, 1)
	require.NoError(t, err)
	assert.True(t, has)
}

type staticRuns struct{ status *entity.RunStatus }

func (s staticRuns) Latest(context.Context, string) (*entity.RunStatus, error) {
	return s.status, nil
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProject(t)

	require.NoError(t, p.SaveChapter(ctx, entity.NewChapter(p.ProjectID(), 1, "开端", "林远回到故乡。"),
		[]*entity.MemoryFact{
			fact(entity.FactKindEvent, 1, "林远", "回乡"),
			fact(entity.FactKindForeshadowing, 1, "玉佩", "【埋下】玉佩发光"),
		}))

	s, err := p.Summary(ctx, staticRuns{status: &entity.RunStatus{State: entity.StateCommitted, Chapter: 1}})
	require.NoError(t, err)
	assert.Equal(t, p.ProjectID(), s.ProjectID)
	assert.Equal(t, 3, s.OutlineChapters)
	require.Len(t, s.Committed, 1)
	assert.Equal(t, "开端", s.Committed[0].Title)
	assert.Equal(t, 2, s.NextChapter)
	assert.Equal(t, 2, s.Remaining)
	assert.False(t, s.Complete())
	assert.Equal(t, 2, s.Memory.Total)
	assert.Equal(t, 1, s.Memory.ByKind[entity.FactKindForeshadowing])
	require.NotNil(t, s.LastRun)
	assert.Equal(t, entity.StateCommitted, s.LastRun.State)
}

func TestSummaryWithoutOutline(t *testing.T) {
	ctx := context.Background()
	p, files := newTestProject(t)
	require.NoError(t, os.Remove(filepath.Join(files.Root(), project.OutlineMarkdown)))

	s, err := p.Summary(ctx, nil)
	require.NoError(t, err)
	assert.True(t, s.OutlineMissing)
	assert.Equal(t, 1, s.NextChapter)
	assert.Nil(t, s.LastRun)
	assert.False(t, s.Complete())
}
