package project

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
)

// 匹配 "## 第十二章：标题"、"## 第3章 标题"、"## Chapter 3: Title"
var chapterHeading = regexp.MustCompile(`^#{1,3}\s*(?:第\s*([0-9零〇一二两三四五六七八九十百千]+)\s*章|(?i:chapter)\s+(\d+))\s*[:：.、\-—]?\s*(.*)$`)

var eventPrefixes = []string{"- ", "* ", "+ "}

// ParseOutlineMarkdown 解析 markdown 大纲：每章一个二/三级标题，
// 列表项为关键事件，其余非空行拼成目标描述
func ParseOutlineMarkdown(r io.Reader) (entity.Outline, error) {
	var (
		outline entity.Outline
		current *entity.OutlineEntry
		goal    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Goal = strings.TrimSpace(strings.Join(goal, "\n"))
		outline = append(outline, *current)
		current, goal = nil, nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if m := chapterHeading.FindStringSubmatch(line); m != nil {
			flush()
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			n, err := ParseChapterNumber(raw)
			if err != nil {
				return nil, apperrors.Validationf("outline line %d: %v", lineNo, err)
			}
			current = &entity.OutlineEntry{Number: n, Title: strings.TrimSpace(m[3])}
			continue
		}
		if current == nil || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if event, ok := trimEventPrefix(line); ok {
			current.KeyEvents = append(current.KeyEvents, event)
			continue
		}
		goal = append(goal, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	flush()

	return normalizeOutline(outline)
}

type outlineFile struct {
	Chapters []entity.OutlineEntry `yaml:"chapters"`
}

// ParseOutlineYAML 解析 yaml 大纲（chapters 列表）
func ParseOutlineYAML(data []byte) (entity.Outline, error) {
	var f outlineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.Validationf("invalid outline yaml: %v", err)
	}
	return normalizeOutline(f.Chapters)
}

// normalizeOutline 按章节号排序并检查重复与非法章节号
func normalizeOutline(entries []entity.OutlineEntry) (entity.Outline, error) {
	seen := make(map[int]struct{}, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Number < 1 {
			return nil, apperrors.Validationf("outline entry %q has invalid chapter number %d", e.Title, e.Number)
		}
		if _, dup := seen[e.Number]; dup {
			return nil, apperrors.Validationf("outline has duplicate chapter %d", e.Number)
		}
		seen[e.Number] = struct{}{}
		e.Title = strings.TrimSpace(e.Title)
		e.Goal = strings.TrimSpace(e.Goal)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Number < entries[j].Number })
	return entity.Outline(entries), nil
}

func trimEventPrefix(line string) (string, bool) {
	for _, p := range eventPrefixes {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(strings.TrimPrefix(line, p)), true
		}
	}
	return "", false
}
