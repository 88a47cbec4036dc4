// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess         ErrorCode = "0"
	CodeUnknown         ErrorCode = "1000"
	CodeInvalidParam    ErrorCode = "1001"
	CodeConflict        ErrorCode = "1005"
	CodeTooManyRequests ErrorCode = "1006"
	CodeInternalError   ErrorCode = "1007"
	CodeMissingInput    ErrorCode = "1009"

	// 资源错误 (3xxx)
	CodeChapterNotFound ErrorCode = "3002"

	// 业务错误 (4xxx)
	CodeGenerationFailed    ErrorCode = "4001"
	CodeMemoryWriteFailed   ErrorCode = "4004"
	CodeLLMTransient        ErrorCode = "4006"
	CodeLLMPermanent        ErrorCode = "4007"
	CodeQualityGateExceeded ErrorCode = "4008"
	CodeCancelled           ErrorCode = "4009"
	CodePipelineBusy        ErrorCode = "4010"

	// 外部服务错误 (5xxx)
	CodeDatabaseError    ErrorCode = "5001"
	CodeCacheError       ErrorCode = "5002"
	CodeStorageError     ErrorCode = "5004"
	CodeLLMProviderError ErrorCode = "5005"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = msg + " (" + e.Detail + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使 errors.Is(err, ErrXxx) 可用。
// MissingInput 同时视为参数校验错误。
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeInvalidParam && e.Code == CodeMissingInput
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 使用格式化消息创建应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeMissingInput:
		return http.StatusBadRequest
	case CodeChapterNotFound:
		return http.StatusNotFound
	case CodeConflict, CodePipelineBusy:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeQualityGateExceeded:
		return http.StatusUnprocessableEntity
	case CodeLLMTransient, CodeLLMPermanent, CodeLLMProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误，仅用于 errors.Is 比较，不要直接修改。
var (
	ErrValidation          = New(CodeInvalidParam, "invalid parameter")
	ErrConflict            = New(CodeConflict, "resource conflict")
	ErrChapterNotFound     = New(CodeChapterNotFound, "chapter not found")
	ErrMissingInput        = New(CodeMissingInput, "missing input")
	ErrGeneration          = New(CodeGenerationFailed, "generation failed")
	ErrTransient           = New(CodeLLMTransient, "transient generation failure")
	ErrPermanent           = New(CodeLLMPermanent, "permanent generation failure")
	ErrQualityGateExceeded = New(CodeQualityGateExceeded, "quality gate exceeded")
	ErrCancelled           = New(CodeCancelled, "cancelled")
	ErrPipelineBusy        = New(CodePipelineBusy, "pipeline busy")
)

// Validationf 创建参数校验错误
func Validationf(format string, args ...any) *AppError {
	return Newf(CodeInvalidParam, format, args...)
}

// MissingInputf 创建缺失输入错误
func MissingInputf(format string, args ...any) *AppError {
	return Newf(CodeMissingInput, format, args...)
}

// IsAppError 检查错误链中是否存在 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// GetCode 返回错误链中第一个 AppError 的错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
