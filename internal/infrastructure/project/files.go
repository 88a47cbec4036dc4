// Package project 读写小说项目目录：大纲、角色、文风与导出的章节文件
package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
)

// 项目目录内的约定文件
const (
	OutlineMarkdown = "outline.md"
	OutlineYAML     = "outline.yaml"
	RolesMarkdown   = "roles.md"
	RolesYAML       = "roles.yaml"
	StyleFile       = "style.md"
	ChaptersDir     = "chapters"
	DataDir         = ".novel"
)

// DefaultStyle 没有 style.md 时使用的文风说明
const DefaultStyle = "第三人称有限视角，叙述克制，对话推动情节；避免大段说明文字，保持人物言行与设定一致。"

// Files 以项目根目录为基础的文件读写
type Files struct {
	root string
}

// NewFiles 创建项目文件访问器
func NewFiles(root string) *Files {
	return &Files{root: root}
}

// Root 项目根目录
func (f *Files) Root() string {
	return f.root
}

// LoadOutline 读取大纲，优先 outline.yaml，其次 outline.md
func (f *Files) LoadOutline(ctx context.Context) (entity.Outline, error) {
	if data, err := f.read(OutlineYAML); err == nil {
		return ParseOutlineYAML(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := f.read(OutlineMarkdown)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.MissingInputf("outline not found: expected %s or %s in %s", OutlineMarkdown, OutlineYAML, f.root)
		}
		return nil, err
	}
	return ParseOutlineMarkdown(bytes.NewReader(data))
}

// LoadRoles 读取角色表，文件不存在时返回空表
func (f *Files) LoadRoles(ctx context.Context) (*entity.RoleSheet, error) {
	if data, err := f.read(RolesYAML); err == nil {
		return ParseRolesYAML(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := f.read(RolesMarkdown)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &entity.RoleSheet{}, nil
		}
		return nil, err
	}
	return ParseRolesMarkdown(bytes.NewReader(data))
}

// LoadStyle 读取文风说明，文件不存在或为空时返回 DefaultStyle
func (f *Files) LoadStyle(ctx context.Context) (string, error) {
	data, err := f.read(StyleFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultStyle, nil
		}
		return "", err
	}
	style := strings.TrimSpace(string(data))
	if style == "" {
		return DefaultStyle, nil
	}
	return style, nil
}

// Export 写出 chapters/NNN.md，先写临时文件再改名
func (f *Files) Export(ctx context.Context, chapter *entity.Chapter) error {
	dir := filepath.Join(f.root, ChaptersDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create chapters dir")
	}

	path := f.ChapterPath(chapter.Number)
	tmp, err := os.CreateTemp(dir, ".chapter-*.md")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create temp chapter file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(chapter.Markdown()); err != nil {
		_ = tmp.Close()
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write chapter file")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write chapter file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to move chapter file into place")
	}
	return nil
}

// Remove 删除导出的章节文件，不存在时忽略
func (f *Files) Remove(ctx context.Context, number int) error {
	if err := os.Remove(f.ChapterPath(number)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to remove chapter file")
	}
	return nil
}

// ChapterPath 章节导出文件路径
func (f *Files) ChapterPath(number int) string {
	return filepath.Join(f.root, ChaptersDir, fmt.Sprintf("%03d.md", number))
}

func (f *Files) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to read "+name)
	}
	return data, nil
}
