package project

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
)

// ParseRolesMarkdown 解析角色表：每个角色一个二级标题，标题下的内容为描述
func ParseRolesMarkdown(r io.Reader) (*entity.RoleSheet, error) {
	var (
		sheet   entity.RoleSheet
		current *entity.Role
		desc    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(desc, "\n"))
		sheet.Roles = append(sheet.Roles, *current)
		current, desc = nil, nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "## ") {
			flush()
			current = &entity.Role{Name: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		if current == nil || strings.HasPrefix(line, "# ") {
			continue
		}
		desc = append(desc, strings.TrimRight(raw, " \t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read roles: %w", err)
	}
	flush()

	return normalizeRoles(&sheet)
}

// ParseRolesYAML 解析 yaml 角色表（roles 列表）
func ParseRolesYAML(data []byte) (*entity.RoleSheet, error) {
	var sheet entity.RoleSheet
	if err := yaml.Unmarshal(data, &sheet); err != nil {
		return nil, apperrors.Validationf("invalid roles yaml: %v", err)
	}
	return normalizeRoles(&sheet)
}

func normalizeRoles(sheet *entity.RoleSheet) (*entity.RoleSheet, error) {
	seen := make(map[string]struct{}, len(sheet.Roles))
	for i := range sheet.Roles {
		r := &sheet.Roles[i]
		r.Name = strings.TrimSpace(r.Name)
		r.Description = strings.TrimSpace(r.Description)
		if r.Name == "" {
			return nil, apperrors.Validationf("role #%d has no name", i+1)
		}
		key := strings.ToLower(r.Name)
		if _, dup := seen[key]; dup {
			return nil, apperrors.Validationf("duplicate role %q", r.Name)
		}
		seen[key] = struct{}{}
	}
	return sheet, nil
}
