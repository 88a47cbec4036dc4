package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"novel-writer/internal/application/story"
	"novel-writer/internal/interfaces/http/dto"
	"novel-writer/pkg/logger"
)

// SummaryCacheTTL 项目概览在 Redis 中的缓存时间，CLI 在另一个进程提交章节，概览允许短暂滞后
const SummaryCacheTTL = 5 * time.Second

// SummaryCache 带合并加载的 JSON 缓存
type SummaryCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error)
}

// StatusHandler 项目进度
type StatusHandler struct {
	project  *story.Project
	runs     story.RunStatusReader
	cache    SummaryCache
	cacheKey string
	group    singleflight.Group
}

// NewStatusHandler 创建进度处理器。cache 为空时只在进程内合并并发请求
func NewStatusHandler(project *story.Project, runs story.RunStatusReader, cache SummaryCache, cacheKey string) *StatusHandler {
	return &StatusHandler{project: project, runs: runs, cache: cache, cacheKey: cacheKey}
}

// GetStatus 项目进度概览
// @Summary 项目进度
// @Description 大纲章节数、已提交章节、下一章、记忆事实统计与最近一次运行状态
// @Tags Status
// @Produce json
// @Success 200 {object} dto.Response[story.Summary]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	data, err := h.loadSummary(ctx)
	if err != nil {
		logger.Error(ctx, "failed to load project summary", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, json.RawMessage(data))
}

func (h *StatusHandler) loadSummary(ctx context.Context) ([]byte, error) {
	load := func(ctx context.Context) (any, error) {
		return h.project.Summary(ctx, h.runs)
	}
	if h.cache != nil {
		return h.cache.GetOrLoad(ctx, h.cacheKey, SummaryCacheTTL, load)
	}

	v, err, _ := h.group.Do(h.project.ProjectID(), func() (any, error) {
		summary, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(summary)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
