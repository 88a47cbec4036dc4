package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-writer/internal/domain/entity"
	"novel-writer/internal/infrastructure/persistence/sqlite"
	apperrors "novel-writer/pkg/errors"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	client, err := sqlite.NewClient(filepath.Join(t.TempDir(), "novel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewStore("novel_test", sqlite.NewMemoryFactRepository(client))
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	facts := []*entity.MemoryFact{
		entity.NewMemoryFact("", 1, entity.FactKindEvent, "林远回到故乡", "林远"),
		entity.NewMemoryFact("", 1, entity.FactKindCharacterState, "右手受伤", "林远"),
		entity.NewMemoryFact("", 2, entity.FactKindRelationship, "结为盟友", "林远", "苏晴"),
		entity.NewMemoryFact("", 2, entity.FactKindForeshadowing, "【埋下】玉佩发光", "玉佩"),
		entity.NewMemoryFact("", 3, entity.FactKindCharacterState, "伤势痊愈", "林远"),
	}
	for _, f := range facts {
		require.NoError(t, s.Record(ctx, f))
	}
}

func chapters(facts []*entity.MemoryFact) []int {
	out := make([]int, 0, len(facts))
	for _, f := range facts {
		out = append(out, f.Chapter)
	}
	return out
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cases := map[string]*entity.MemoryFact{
		"nil":           nil,
		"bad kind":      entity.NewMemoryFact("", 1, entity.FactKind("weather"), "下雨", "天气"),
		"no subject":    entity.NewMemoryFact("", 1, entity.FactKindEvent, "发生了什么"),
		"blank subject": entity.NewMemoryFact("", 1, entity.FactKindEvent, "发生了什么", "  "),
		"no content":    entity.NewMemoryFact("", 1, entity.FactKindEvent, " ", "林远"),
		"chapter zero":  entity.NewMemoryFact("", 0, entity.FactKindEvent, "序章", "林远"),
		"other project": entity.NewMemoryFact("novel_other", 1, entity.FactKindEvent, "越界", "林远"),
	}
	for name, fact := range cases {
		err := s.Record(ctx, fact)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestRecordNormalizes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fact := entity.NewMemoryFact("", 2, entity.FactKindRelationship, "  结为盟友 ", " 林远", "苏晴", "林远", "")
	require.NoError(t, s.Record(ctx, fact))
	assert.Equal(t, "novel_test", fact.ProjectID)
	assert.Equal(t, []string{"林远", "苏晴"}, fact.Subjects)
	assert.Equal(t, "结为盟友", fact.Content)
	assert.NotEmpty(t, fact.ID)
	assert.NotZero(t, fact.Seq)
}

func TestQueryNeverExceedsUpperBound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	for k := 0; k <= 4; k++ {
		facts, err := Collect(s.Query(ctx, k, Filter{}))
		require.NoError(t, err)
		for _, f := range facts {
			assert.LessOrEqual(t, f.Chapter, k)
		}
	}

	facts, err := Collect(s.Query(ctx, 0, Filter{}))
	require.NoError(t, err)
	assert.Empty(t, facts)

	facts, err = Collect(s.Query(ctx, 2, Filter{}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, chapters(facts))
	assert.Equal(t, entity.FactKindEvent, facts[0].Kind)
	assert.Equal(t, entity.FactKindCharacterState, facts[1].Kind)
}

func TestQueryIsRestartable(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	seq := s.Query(ctx, 3, Filter{})
	first, err := Collect(seq)
	require.NoError(t, err)

	require.NoError(t, s.Record(ctx, entity.NewMemoryFact("", 3, entity.FactKindEvent, "决战", "林远")))

	second, err := Collect(seq)
	require.NoError(t, err)
	assert.Len(t, second, len(first)+1)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	facts, err := Collect(s.Query(ctx, 3, Filter{Subject: "苏晴"}))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, entity.FactKindRelationship, facts[0].Kind)

	facts, err = Collect(s.Query(ctx, 3, Filter{Kinds: []entity.FactKind{entity.FactKindCharacterState}}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, chapters(facts))

	facts, err = Collect(s.Recent(ctx, 3, Filter{}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2, 1, 1}, chapters(facts))

	facts, err = Collect(s.ForChapter(ctx, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, chapters(facts))
}

func TestLatestKeepsMostRecentPerKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	require.NoError(t, s.Record(ctx, entity.NewMemoryFact("", 3, entity.FactKindEvent, "重返旧宅", "林远")))

	latest, err := Latest(s.All(ctx, Filter{}))
	require.NoError(t, err)
	require.Len(t, latest, 5)

	var states []string
	for _, f := range latest {
		if f.Kind == entity.FactKindCharacterState {
			states = append(states, f.Content)
		}
	}
	assert.Equal(t, []string{"伤势痊愈"}, states)

	all, err := Collect(s.All(ctx, Filter{}))
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestLatestTracksForeshadowingPerThread(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, f := range []*entity.MemoryFact{
		entity.NewMemoryFact("", 1, entity.FactKindForeshadowing, entity.ForeshadowPlanted+"玉佩来历", "林远"),
		entity.NewMemoryFact("", 2, entity.FactKindForeshadowing, entity.ForeshadowPlanted+"暗格钥匙", "林远"),
		entity.NewMemoryFact("", 3, entity.FactKindForeshadowing, entity.ForeshadowResolved+"玉佩来历", "林远"),
	} {
		require.NoError(t, s.Record(ctx, f))
	}

	latest, err := Latest(s.All(ctx, Filter{}))
	require.NoError(t, err)
	var contents []string
	for _, f := range latest {
		contents = append(contents, f.Content)
	}
	assert.Equal(t, []string{"【埋下】暗格钥匙", "【回收】玉佩来历"}, contents)
}

func TestHasChapterAndStats(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)

	ok, err := s.HasChapter(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasChapter(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.ByKind[entity.FactKindCharacterState])
	assert.Equal(t, 1, stats.ByKind[entity.FactKindForeshadowing])
}
