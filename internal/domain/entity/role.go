package entity

import "strings"

// Role 角色设定
type Role struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// RoleSheet 角色表，只读输入
type RoleSheet struct {
	Roles []Role `json:"roles" yaml:"roles"`
}

// Names 全部角色名
func (s *RoleSheet) Names() []string {
	names := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Find 按名字查找，忽略大小写与首尾空白
func (s *RoleSheet) Find(name string) (*Role, bool) {
	name = strings.TrimSpace(name)
	for i := range s.Roles {
		if strings.EqualFold(s.Roles[i].Name, name) {
			return &s.Roles[i], true
		}
	}
	return nil, false
}

// Render 渲染为提示词文本
func (s *RoleSheet) Render() string {
	if s == nil || len(s.Roles) == 0 {
		return "（无角色设定）"
	}
	var b strings.Builder
	for i, r := range s.Roles {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("【")
		b.WriteString(r.Name)
		b.WriteString("】\n")
		b.WriteString(strings.TrimSpace(r.Description))
	}
	return b.String()
}
