// Package main novel-writer 命令行入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"novel-writer/internal/config"
	"novel-writer/internal/infrastructure/eino/callback"
	"novel-writer/internal/wire"
	"novel-writer/pkg/logger"
	"novel-writer/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type globalFlags struct {
	project string
	config  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// 第一次中断后恢复默认信号处理，再按一次直接退出
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "novel-writer",
		Short:         "按大纲逐章生成小说：规划、写作、审稿、归档",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.project, "project", "p", ".", "项目目录")
	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "额外的配置文件")

	cmd.AddCommand(
		newInitCmd(flags),
		newWriteCmd(flags),
		newWriteChapterCmd(flags),
		newWriteNextCmd(flags),
		newWriteAllCmd(flags),
		newStatusCmd(flags),
		newReadCmd(flags),
		newDeleteCmd(flags),
		newServeCmd(flags),
	)
	return cmd
}

// session 一次命令执行需要的全部依赖
type session struct {
	cfg      *config.Config
	app      *wire.App
	shutdown func(context.Context) error
}

func (s *session) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := s.app.Close(); err != nil {
		logger.Warn(ctx, "failed to close app", "error", err.Error())
	}
	if err := s.shutdown(ctx); err != nil {
		logger.Warn(ctx, "failed to shutdown tracer", "error", err.Error())
	}
}

// openSession 加载 .env 与配置，初始化日志、追踪并组装项目
func openSession(ctx context.Context, flags *globalFlags) (*session, error) {
	root, err := filepath.Abs(flags.project)
	if err != nil {
		return nil, err
	}
	_ = godotenv.Load(filepath.Join(root, ".env"))

	opts := []config.LoadOption{config.WithProjectDir(root)}
	if flags.config != "" {
		opts = append(opts, config.WithConfigFile(flags.config))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}

	callback.Init()

	app, err := wire.InitializeApp(ctx, cfg, root)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return &session{cfg: cfg, app: app, shutdown: shutdown}, nil
}

// withSession 打开项目执行 fn，结束后释放资源
func withSession(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close(ctx)
	return fn(ctx, s)
}
