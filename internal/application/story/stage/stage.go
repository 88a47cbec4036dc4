// Package stage 章节流水线的四个生成阶段：Director、Writer、Reviewer、Archivist。
// 每个阶段只做一次逻辑生成调用，瞬时错误的重试在 node.Generator 内完成。
package stage

import (
	"novel-writer/internal/config"
	wfmodel "novel-writer/internal/workflow/model"
	apperrors "novel-writer/pkg/errors"
)

// 阶段名，用于日志与指标
const (
	NameDirector  = "director"
	NameWriter    = "writer"
	NameReviewer  = "reviewer"
	NameArchivist = "archivist"
)

// ParamsFromConfig 阶段配置转生成参数，零值表示沿用 provider 配置
func ParamsFromConfig(cfg config.StageConfig) wfmodel.GenerationParams {
	p := wfmodel.GenerationParams{
		Provider: cfg.Provider,
		Model:    cfg.Model,
	}
	if cfg.Temperature > 0 {
		t := float32(cfg.Temperature)
		p.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		p.MaxTokens = &n
	}
	return p
}

// wrapErr 已分类的错误原样返回，其余视为生成失败
func wrapErr(stage string, err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeGenerationFailed, stage+" stage failed")
}
