package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Project 小说项目，以项目目录为根
type Project struct {
	ID    string `json:"id"`
	Root  string `json:"root"`
	Title string `json:"title"`
}

// NewProject 根据目录创建项目，ID 由绝对路径派生，同一目录始终得到同一 ID
func NewProject(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(abs))
	return &Project{
		ID:    "novel_" + hex.EncodeToString(sum[:])[:12],
		Root:  abs,
		Title: filepath.Base(abs),
	}, nil
}
