package handler

import (
	"github.com/gin-gonic/gin"

	"novel-writer/internal/application/story"
	"novel-writer/internal/interfaces/http/dto"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
)

// ChapterHandler 已提交章节的只读接口
type ChapterHandler struct {
	project *story.Project
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(project *story.Project) *ChapterHandler {
	return &ChapterHandler{project: project}
}

// ListChapters 获取章节列表
// @Summary 获取章节列表
// @Tags Chapters
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ChapterListItem]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/chapters [get]
func (h *ChapterHandler) ListChapters(c *gin.Context) {
	ctx := c.Request.Context()
	chapters, err := h.project.Chapters(ctx)
	if err != nil {
		logger.Error(ctx, "failed to list chapters", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToChapterList(chapters))
}

// GetChapter 获取章节详情
// @Summary 获取章节详情
// @Tags Chapters
// @Produce json
// @Param n path int true "章节号"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chapters/{n} [get]
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := dto.BindChapterNumber(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	ch, err := h.project.LoadChapter(ctx, n)
	if err != nil {
		logger.Error(ctx, "failed to load chapter", err, "chapter", n)
		dto.FromError(c, err)
		return
	}
	if ch == nil {
		dto.FromError(c, apperrors.Newf(apperrors.CodeChapterNotFound, "chapter %d not committed", n))
		return
	}
	dto.Success(c, dto.ToChapterResponse(ch))
}
