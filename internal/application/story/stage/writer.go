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

// Writer 写章节正文；草稿带审稿意见时，上一版正文与意见原文都进入提示词
type Writer struct {
	chain  *chain.WriterChain
	params wfmodel.GenerationParams
}

func NewWriter(generator *wfnode.Generator, params wfmodel.GenerationParams) *Writer {
	return &Writer{chain: chain.NewWriterChain(generator), params: params}
}

func (w *Writer) Write(ctx context.Context, sc *storycontext.StoryContext, draft *entity.ChapterDraft) (string, error) {
	in := &wfmodel.WriterInput{
		GenerationParams: w.params,
		StoryBlocks:      sc.Blocks(),
	}
	if draft != nil && draft.IsRevision() {
		in.PreviousDraft = draft.Text
		in.Feedback = draft.Feedback.Format()
		in.Rewrite = draft.Feedback.Rewrite()
	}

	logger.Debug(ctx, "writer stage started",
		"chapter", sc.Chapter,
		"revision", in.Revision(),
		"rewrite", in.Rewrite,
	)

	out, err := w.chain.Invoke(ctx, in)
	if err != nil {
		return "", wrapErr(NameWriter, err)
	}
	// 空正文照常返回，审稿阶段短路判定不通过并消耗一次质量重试
	text := strings.TrimSpace(out.Content)

	logger.Debug(ctx, "writer stage finished", "chapter", sc.Chapter, "runes", len([]rune(text)))
	return text, nil
}
