// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
)

// PageRequest 分页请求参数
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// Normalize 规范化分页参数
func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	if r.PageSize > 100 {
		r.PageSize = 100
	}
}

// Offset 计算偏移量
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// BindPage 从 Gin Context 绑定分页参数
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     parseIntWithDefault(c.Query("page"), 1),
		PageSize: parseIntWithDefault(c.Query("page_size"), 20),
	}
	req.Normalize()
	return req
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindChapterNumber 从 URI 绑定章节号
func BindChapterNumber(c *gin.Context) (int, error) {
	raw := c.Param("n")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Validationf("invalid chapter number %q", raw)
	}
	return n, nil
}

// MemoryQuery 记忆查询参数
type MemoryQuery struct {
	// UpTo 章节上界（含），0 表示全部
	UpTo    int
	Kinds   []entity.FactKind
	Subject string
	// Latest 只保留每个 (kind, subject) 的最新状态
	Latest bool
}

// BindMemoryQuery 绑定 ?up_to=&kind=a,b&subject=&latest=true
func BindMemoryQuery(c *gin.Context) (MemoryQuery, error) {
	q := MemoryQuery{
		Subject: strings.TrimSpace(c.Query("subject")),
	}
	if raw := c.Query("up_to"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, apperrors.Validationf("invalid up_to %q", raw)
		}
		q.UpTo = n
	}
	if raw := c.Query("kind"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			kind := entity.FactKind(strings.TrimSpace(part))
			if !kind.Valid() {
				return q, apperrors.Validationf("unknown fact kind %q", part)
			}
			q.Kinds = append(q.Kinds, kind)
		}
	}
	if raw := c.Query("latest"); raw != "" {
		latest, err := strconv.ParseBool(raw)
		if err != nil {
			return q, apperrors.Validationf("invalid latest %q", raw)
		}
		q.Latest = latest
	}
	return q, nil
}
