package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "novel-writer/pkg/errors"
)

const outlineTemplate = `# 大纲

## 第一章：开端
主角登场，交代故事背景与核心矛盾。
- 主角在日常中遭遇异常事件
- 埋下贯穿全书的伏笔

## 第二章：波澜
矛盾升级，主角被迫做出选择。
- 与重要配角初次交锋
`

const rolesTemplate = `# 角色

## 主角
性格、背景、动机、说话方式。

## 配角
与主角的关系、立场、秘密。
`

// Scaffold 在目录下生成大纲、角色与文风模板，已有文件时拒绝覆盖
func Scaffold(root string) ([]string, error) {
	files := map[string]string{
		OutlineMarkdown: outlineTemplate,
		RolesMarkdown:   rolesTemplate,
		StyleFile:       DefaultStyle + "\n",
	}
	order := []string{OutlineMarkdown, RolesMarkdown, StyleFile}

	var existing []string
	for _, name := range order {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			existing = append(existing, name)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to inspect "+name)
		}
	}
	if len(existing) > 0 {
		return nil, apperrors.Newf(apperrors.CodeConflict, "refusing to overwrite existing files: %s", strings.Join(existing, ", "))
	}

	for _, dir := range []string{root, filepath.Join(root, ChaptersDir), filepath.Join(root, DataDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create "+dir)
		}
	}

	created := make([]string, 0, len(order))
	for _, name := range order {
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte(files[name]), 0o644); err != nil {
			return created, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write "+name)
		}
		created = append(created, path)
	}
	return created, nil
}
