// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "novel-writer/pkg/errors"
)

// Response 成功响应
type Response[T any] struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    T         `json:"data,omitempty"`
	Meta    *PageMeta `json:"meta,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// PageMeta 分页信息
type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ErrorDetail 业务错误码与补充说明
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

func Success[T any](c *gin.Context, data T) {
	SuccessWithPage(c, data, nil)
}

func SuccessWithPage[T any](c *gin.Context, data T, meta *PageMeta) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		Meta:    meta,
		TraceID: c.GetString("trace_id"),
	})
}

// FromError 按 AppError 的 HTTP 状态返回；其他错误一律 500，不暴露内部信息
func FromError(c *gin.Context, err error) {
	resp := ErrorResponse{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
		Error:   &ErrorDetail{ErrorCode: string(apperrors.CodeInternalError)},
		TraceID: c.GetString("trace_id"),
	}
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		resp.Code = appErr.HTTPStatus
		resp.Message = appErr.Message
		resp.Error = &ErrorDetail{ErrorCode: string(appErr.Code), Details: appErr.Detail}
	}
	c.AbortWithStatusJSON(resp.Code, resp)
}

// Paginate 截取当前页，页码越界时返回空切片
func Paginate[T any](items []T, page PageRequest) ([]T, *PageMeta) {
	total := len(items)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	meta := &PageMeta{Page: page.Page, PageSize: page.PageSize, Total: total}
	if page.PageSize > 0 {
		meta.TotalPages = (total + page.PageSize - 1) / page.PageSize
	}
	return items[start:end], meta
}
