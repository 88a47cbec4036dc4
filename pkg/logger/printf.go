package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Printf 把 Printf 风格的第三方日志（如 gorm）转成一条 slog 记录
type Printf struct {
	Level     slog.Level
	Component string
}

func (p Printf) Printf(format string, args ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	Default().Log(context.Background(), p.Level, msg, "component", p.Component)
}
