package node

import (
	"context"
	"errors"
	"net"
	"strings"

	apperrors "novel-writer/pkg/errors"
)

// IsResponseFormatUnsupportedError 判断服务端是否不支持 response_format/json_schema，
// 命中时调用方应去掉结构化输出参数重试一次。
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "response_format"):
		return true
	case strings.Contains(msg, "json_schema"):
		return true
	case strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response"):
		return true
	case strings.Contains(msg, "invalid") && strings.Contains(msg, "response"):
		return true
	case strings.Contains(msg, "response_schema"):
		return true
	default:
		return false
	}
}

var permanentMarkers = []string{
	"401", "403", "404 not found",
	"unauthorized", "forbidden",
	"invalid api key", "invalid_api_key", "incorrect api key",
	"authentication", "permission denied",
	"content_policy", "content policy", "content_filter", "safety",
	"context_length_exceeded", "maximum context length",
	"model_not_found", "does not exist",
	"insufficient_quota", "billing",
}

var transientMarkers = []string{
	"429", "rate limit", "rate_limit", "too many requests",
	"500", "502", "503", "504",
	"internal server error", "bad gateway", "service unavailable", "gateway timeout",
	"overloaded", "temporarily", "try again",
	"timeout", "timed out", "deadline exceeded",
	"connection reset", "connection refused", "broken pipe", "eof",
}

// IsTransientError 判断生成调用失败是否可以重试。
// 已带错误码的按错误码判断，否则按网络错误类型和错误信息判断，无法识别的按可重试处理。
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	switch apperrors.GetCode(err) {
	case apperrors.CodeLLMTransient:
		return true
	case apperrors.CodeLLMPermanent, apperrors.CodeInvalidParam, apperrors.CodeMissingInput, apperrors.CodeCancelled:
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return false
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return true
}
