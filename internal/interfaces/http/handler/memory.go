package handler

import (
	"math"

	"github.com/gin-gonic/gin"

	"novel-writer/internal/application/memory"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/interfaces/http/dto"
	"novel-writer/pkg/logger"
)

// MemoryHandler 记忆事实查询
type MemoryHandler struct {
	store *memory.Store
}

// NewMemoryHandler 创建记忆处理器
func NewMemoryHandler(store *memory.Store) *MemoryHandler {
	return &MemoryHandler{store: store}
}

// ListFacts 查询记忆事实
// @Summary 查询记忆事实
// @Description 按章节上界、类型、主体过滤；latest=true 时只保留每个主体的最新状态
// @Tags Memory
// @Produce json
// @Param up_to query int false "章节上界（含）"
// @Param kind query string false "类型，逗号分隔"
// @Param subject query string false "主体"
// @Param latest query bool false "只保留最新状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.MemoryFactResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/memory [get]
func (h *MemoryHandler) ListFacts(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := dto.BindMemoryQuery(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	page := dto.BindPage(c)

	upTo := q.UpTo
	if upTo == 0 {
		upTo = math.MaxInt32
	}
	seq := h.store.Query(ctx, upTo, memory.Filter{Kinds: q.Kinds, Subject: q.Subject})

	var facts []*entity.MemoryFact
	if q.Latest {
		facts, err = memory.Latest(seq)
	} else {
		facts, err = memory.Collect(seq)
	}
	if err != nil {
		logger.Error(ctx, "failed to query memory facts", err)
		dto.FromError(c, err)
		return
	}

	facts, meta := dto.Paginate(facts, page)
	dto.SuccessWithPage(c, dto.ToMemoryFacts(facts), meta)
}
