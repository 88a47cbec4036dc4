package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-writer/internal/config"
	"novel-writer/internal/infrastructure/project"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "novel-writer", Env: "test"},
		Storage: config.StorageConfig{Driver: "sqlite", ExportMarkdown: true},
		LLM: config.LLMConfig{
			DefaultProvider: "openai",
			Providers:       map[string]config.ProviderConfig{"openai": {Model: "test-model"}},
			Retry:           config.RetryConfig{MaxAttempts: 1},
		},
		Pipeline: config.PipelineConfig{MaxRetries: 3, ContextBudget: 12000, PreviousTailRunes: 3000, PassScore: 70},
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, filepath.Join("/novel", ".novel", "novel.db"), SQLitePath(cfg, "/novel"))

	cfg.Storage.SQLite.Path = "data/x.db"
	assert.Equal(t, filepath.Join("/novel", "data", "x.db"), SQLitePath(cfg, "/novel"))

	cfg.Storage.SQLite.Path = "/var/lib/novel.db"
	assert.Equal(t, "/var/lib/novel.db", SQLitePath(cfg, "/novel"))
}

func TestInitializeApp(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	_, err := project.Scaffold(root)
	require.NoError(t, err)

	app, err := InitializeApp(ctx, testConfig(), root)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	_, err = os.Stat(filepath.Join(root, project.DataDir, "novel.db"))
	require.NoError(t, err)

	next, err := app.Project.NextChapter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	// 没有提交过章节时，第 2 章的前置条件不满足，不会调用模型
	_, err = app.Controller.Run(ctx, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter 1 not committed")

	engine := app.Router("test").Engine()
	for _, path := range []string{"/ready", "/v1/status", "/v1/chapters"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
