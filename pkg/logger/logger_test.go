package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextInjectsKeys(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { Init("info", "text") })

	ctx := WithProject(context.Background(), "novel_abc")
	ctx = WithChapter(ctx, 4)
	ctx = WithRun(ctx, "run-1")

	Error(ctx, "stage failed", errors.New("boom"), "stage", "writer")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage failed", entry["msg"])
	assert.Equal(t, "novel_abc", entry["project_id"])
	assert.Equal(t, float64(4), entry["chapter"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "text")
	t.Cleanup(func() { Init("info", "text") })

	Info(context.Background(), "hidden")
	Warn(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrintfBridge(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { Init("info", "text") })

	Printf{Level: slog.LevelWarn, Component: "gorm"}.Printf("\n%s [%.3fms] %s", "slow sql", 1200.5, "SELECT 1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "gorm", entry["component"])
	assert.Equal(t, "slow sql [1200.500ms] SELECT 1", entry["msg"])
}

func TestParseLevelAliases(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelDebug, parseLevel(" debug "))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
