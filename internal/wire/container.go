// Package wire 组装应用依赖：存储、模型、流水线与 HTTP 路由
package wire

import (
	"context"
	"errors"
	"path/filepath"

	"novel-writer/internal/application/story"
	storycontext "novel-writer/internal/application/story/context"
	"novel-writer/internal/application/story/pipeline"
	"novel-writer/internal/application/story/stage"
	"novel-writer/internal/config"
	"novel-writer/internal/domain/entity"
	"novel-writer/internal/domain/repository"
	"novel-writer/internal/infrastructure/llm"
	"novel-writer/internal/infrastructure/messaging"
	"novel-writer/internal/infrastructure/persistence/postgres"
	"novel-writer/internal/infrastructure/persistence/redis"
	"novel-writer/internal/infrastructure/persistence/sqlite"
	"novel-writer/internal/infrastructure/project"
	"novel-writer/internal/interfaces/http/handler"
	"novel-writer/internal/interfaces/http/router"
	wfnode "novel-writer/internal/workflow/node"
	"novel-writer/pkg/logger"
)

// DataLayer 存储层
type DataLayer struct {
	Chapters repository.ChapterRepository
	Facts    repository.MemoryFactRepository
	Tx       repository.Transactor
	// Health 存储健康检查
	Health handler.HealthChecker
	// Lock 数据库租约锁，未启用 Redis 时跨进程保证项目内只有一条流水线
	Lock pipeline.RunLock
	// Redis 未启用时为 nil
	Redis *redis.Client
}

// App 一个项目目录对应的完整依赖
type App struct {
	Config     *config.Config
	Files      *project.Files
	Project    *story.Project
	Controller *pipeline.Controller
	Batch      *pipeline.Batch
	Runs       pipeline.StatusRecorder
	Data       *DataLayer

	closers []func() error
}

// InitializeDataLayer 按 storage.driver 打开存储，必要时连接 Redis
func InitializeDataLayer(ctx context.Context, cfg *config.Config, root string) (*DataLayer, func(), error) {
	var (
		data    DataLayer
		cleanup []func()
	)
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	switch cfg.Storage.Driver {
	case "postgres":
		client, err := postgres.NewClient(ctx, &cfg.Storage.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, func() { _ = client.Close() })
		if err := client.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		data.Chapters = postgres.NewChapterRepository(client)
		data.Facts = postgres.NewMemoryFactRepository(client)
		data.Tx = postgres.NewTxManager(client)
		data.Lock = postgres.NewRunLock(client, cfg.Pipeline.LockTTL)
		data.Health = client
	default:
		client, err := sqlite.NewClient(SQLitePath(cfg, root))
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, func() { _ = client.Close() })
		data.Chapters = sqlite.NewChapterRepository(client)
		data.Facts = sqlite.NewMemoryFactRepository(client)
		data.Tx = sqlite.NewTxManager(client)
		data.Lock = sqlite.NewRunLock(client, cfg.Pipeline.LockTTL)
		data.Health = client
	}

	if cfg.Cache.Redis.Enabled {
		client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		cleanup = append(cleanup, func() { _ = client.Close() })
		data.Redis = client
	}

	return &data, closeAll, nil
}

// SQLitePath 相对路径基于项目目录
func SQLitePath(cfg *config.Config, root string) string {
	path := cfg.Storage.SQLite.Path
	if path == "" {
		path = filepath.Join(project.DataDir, "novel.db")
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// InitializeApp 组装项目目录 root 的流水线
func InitializeApp(ctx context.Context, cfg *config.Config, root string) (*App, error) {
	info, err := entity.NewProject(root)
	if err != nil {
		return nil, err
	}

	data, cleanup, err := InitializeDataLayer(ctx, cfg, info.Root)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Data: data, closers: []func() error{func() error { cleanup(); return nil }}}

	app.Files = project.NewFiles(info.Root)
	deps := story.ProjectDeps{
		Info:     info,
		Source:   app.Files,
		Chapters: data.Chapters,
		Facts:    data.Facts,
		Tx:       data.Tx,
	}
	if cfg.Storage.ExportMarkdown {
		deps.Exporter = app.Files
	}
	app.Project = story.NewProject(deps)

	generator := wfnode.NewGenerator(llm.NewEinoFactory(&cfg.LLM), wfnode.RetryPolicyFromConfig(cfg.LLM.Retry))
	pc := cfg.Pipeline
	stages := pipeline.Stages{
		Director:  stage.NewDirector(generator, stage.ParamsFromConfig(pc.Stages.Director)),
		Writer:    stage.NewWriter(generator, stage.ParamsFromConfig(pc.Stages.Writer)),
		Reviewer:  stage.NewReviewer(generator, stage.ParamsFromConfig(pc.Stages.Reviewer), pc.PassScore),
		Archivist: stage.NewArchivist(generator, stage.ParamsFromConfig(pc.Stages.Archivist), app.Project.Memory()),
	}
	builder := storycontext.NewBuilder(app.Project, app.Project.Memory(), storycontext.BudgetFromConfig(pc))

	app.Runs = project.NewStatusStore(info.Root)
	opts := []pipeline.Option{pipeline.WithLock(data.Lock)}
	observers := []pipeline.Observer{}
	if data.Redis != nil {
		cache := redis.NewCache(data.Redis)
		app.Runs = redis.NewRunStatusStore(cache, cfg.Cache.Redis.StatusTTL)
		opts = append(opts, pipeline.WithLock(redis.NewRunLock(data.Redis, cfg.Cache.Redis.LockTTL)))
		if cfg.Messaging.RedisStream.Enabled {
			producer := messaging.NewProducer(data.Redis.Redis(), cfg.Messaging.RedisStream.Stream, int64(cfg.Messaging.RedisStream.MaxLen))
			observers = append(observers, pipeline.NewEventObserver(producer))
		}
	} else if cfg.Messaging.RedisStream.Enabled {
		logger.Warn(ctx, "messaging.redis_stream.enabled requires cache.redis.enabled, chapter events disabled")
	}
	observers = append(observers, pipeline.NewStatusObserver(app.Runs))
	opts = append(opts, pipeline.WithObservers(observers...))

	app.Controller = pipeline.NewController(app.Project, builder, stages, pc, opts...)
	app.Batch = pipeline.NewBatch(app.Controller, app.Project)
	return app, nil
}

// Router 只读查询接口
func (a *App) Router(version string) *router.Router {
	deps := []handler.Dependency{{Name: "storage", Checker: a.Data.Health, Required: true}}
	var (
		cache    handler.SummaryCache
		routeOpt []router.Option
	)
	if a.Data.Redis != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Checker: a.Data.Redis, Required: false})
		cache = redis.NewCache(a.Data.Redis)
		routeOpt = append(routeOpt, router.WithRateLimiter(redis.NewRateLimiter(a.Data.Redis), redis.BuildRateLimitKey))
	}

	handlers := router.Handlers{
		Health:  handler.NewHealthHandler(version, deps...),
		Status:  handler.NewStatusHandler(a.Project, a.Runs, cache, redis.BuildSummaryKey(a.Project.ProjectID())),
		Chapter: handler.NewChapterHandler(a.Project),
		Memory:  handler.NewMemoryHandler(a.Project.Memory()),
	}
	return router.New(a.Config, handlers, routeOpt...)
}

// Close 释放存储与 Redis 连接
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
