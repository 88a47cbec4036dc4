package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"novel-writer/internal/application/story/pipeline"
	"novel-writer/internal/infrastructure/project"
	apperrors "novel-writer/pkg/errors"
	"novel-writer/pkg/logger"
)

func newInitCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "在项目目录生成大纲、角色与文风模板",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := filepath.Abs(flags.project)
			if err != nil {
				return err
			}
			created, err := project.Scaffold(root)
			if err != nil {
				return err
			}
			for _, path := range created {
				fmt.Fprintln(cmd.OutOrStdout(), "created", path)
			}
			return nil
		},
	}
}

func newWriteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write",
		Short: "写下一个未提交的章节",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				results, err := s.app.Batch.RunNext(ctx, 1)
				printResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

func newWriteChapterCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write-c N",
		Short: "写第 N 章，要求第 N-1 章已提交",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapterArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				res, err := s.app.Controller.Run(ctx, n)
				if res != nil {
					printResults(cmd.OutOrStdout(), []*pipeline.RunResult{res})
				}
				return err
			})
		},
	}
}

func newWriteNextCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write-n N",
		Short: "从下一个未提交章节开始连续写 N 章",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := parseChapterArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				results, err := s.app.Batch.RunNext(ctx, count)
				printResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

func newWriteAllCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write-all",
		Short: "写完大纲中所有未提交章节",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				results, err := s.app.Batch.RunAll(ctx)
				if err == nil && len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "所有大纲章节均已提交")
					return nil
				}
				printResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "查看项目进度与最近一次运行",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				summary, err := s.app.Project.Summary(ctx, s.app.Runs)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func newReadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read N",
		Short: "输出已提交的第 N 章",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapterArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				ch, err := s.app.Project.LoadChapter(ctx, n)
				if err != nil {
					return err
				}
				if ch == nil {
					return apperrors.Newf(apperrors.CodeChapterNotFound, "chapter %d not committed", n)
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), ch.Markdown())
				return err
			})
		},
	}
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-c N",
		Short: "删除第 N 章及其记忆事实，只能删除最后一章",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapterArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				if err := s.app.Project.DeleteChapter(ctx, n); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted chapter %d\n", n)
				return nil
			})
		},
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动只读的进度查询 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, serve)
		},
	}
}

func serve(ctx context.Context, s *session) error {
	httpCfg := s.cfg.Server.HTTP
	addr := fmt.Sprintf("%s:%d", httpCfg.Host, httpCfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.app.Router(Version).Engine(),
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  httpCfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "http server starting", "addr", addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, "server exited")
	return nil
}

func parseChapterArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, apperrors.Validationf("chapter number must be a positive integer, got %q", s)
	}
	return n, nil
}

// exitCode 按错误类别区分退出码，便于脚本判断
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, apperrors.ErrCancelled), errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrConflict):
		return 2
	case errors.Is(err, apperrors.ErrPipelineBusy):
		return 3
	case errors.Is(err, apperrors.ErrQualityGateExceeded):
		return 4
	default:
		return 1
	}
}

