package redis

import "strings"

const keyPrefix = "novel"

func buildKey(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// BuildRunLockKey 项目运行锁
func BuildRunLockKey(projectID string) string {
	return buildKey("lock", "run", projectID)
}

// BuildStatusKey 最近一次运行状态
func BuildStatusKey(projectID string) string {
	return buildKey("status", projectID)
}

// BuildSummaryKey 项目概况缓存
func BuildSummaryKey(projectID string) string {
	return buildKey("summary", projectID)
}

// BuildRateLimitKey 按客户端与路由限流
func BuildRateLimitKey(clientIP, path string) string {
	return buildKey("ratelimit", clientIP, path)
}
