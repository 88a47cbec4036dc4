package stage

import (
	"context"

	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/workflow/chain"
	wfmodel "novel-writer/internal/workflow/model"
	wfnode "novel-writer/internal/workflow/node"
	"novel-writer/pkg/logger"
)

// Director 把大纲条目细化为章节计划
type Director struct {
	chain  *chain.DirectorChain
	params wfmodel.GenerationParams
}

func NewDirector(generator *wfnode.Generator, params wfmodel.GenerationParams) *Director {
	return &Director{chain: chain.NewDirectorChain(generator), params: params}
}

// Plan 基于规划视图（尚未绑定计划的上下文）生成计划
func (d *Director) Plan(ctx context.Context, sc *storycontext.StoryContext) (*entity.ChapterPlan, error) {
	logger.Debug(ctx, "director stage started", "chapter", sc.Chapter)

	out, err := d.chain.Invoke(ctx, &wfmodel.DirectorInput{
		GenerationParams: d.params,
		StoryBlocks:      sc.Blocks(),
	})
	if err != nil {
		return nil, wrapErr(NameDirector, err)
	}

	logger.Debug(ctx, "director stage finished",
		"chapter", sc.Chapter,
		"parsed", out.Parsed,
		"scenes", len(out.Plan.Scenes),
	)
	return out.Plan, nil
}
