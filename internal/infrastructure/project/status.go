package project

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"novel-writer/internal/domain/entity"
	apperrors "novel-writer/pkg/errors"
)

// StatusFile 最近一次运行状态，CLI 的 status 命令读取
const StatusFile = "status.json"

// StatusStore 把最近一次运行状态写到 .novel/status.json
type StatusStore struct {
	mu   sync.Mutex
	path string
}

// NewStatusStore 创建项目目录下的状态文件存储
func NewStatusStore(root string) *StatusStore {
	return &StatusStore{path: filepath.Join(root, DataDir, StatusFile)}
}

// Save 覆盖写入状态
func (s *StatusStore) Save(_ context.Context, status *entity.RunStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encode run status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create data dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write run status")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write run status")
	}
	return nil
}

// Latest 读取状态；项目 ID 不一致或文件不存在时返回 nil
func (s *StatusStore) Latest(_ context.Context, projectID string) (*entity.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to read run status")
	}
	var st entity.RunStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "corrupt run status file")
	}
	if st.ProjectID != projectID {
		return nil, nil
	}
	return &st, nil
}
