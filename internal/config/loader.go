// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	apperrors "novel-writer/pkg/errors"
)

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

type loadOptions struct {
	projectDir string
	configFile string
}

// LoadOption 配置加载选项
type LoadOption func(*loadOptions)

// WithProjectDir 指定项目目录，读取其中的 config.yaml 与 config.<env>.yaml
func WithProjectDir(dir string) LoadOption {
	return func(o *loadOptions) { o.projectDir = dir }
}

// WithConfigFile 指定额外的配置文件（必须存在）
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// Load 加载配置文件
// 按优先级加载：默认值 -> configs/config.yaml -> 项目 config.yaml -> 环境配置 -> 指定文件 -> 环境变量
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	files := []string{
		"configs/config.yaml",
		fmt.Sprintf("configs/config.%s.yaml", env),
	}
	if o.projectDir != "" {
		files = append(files,
			filepath.Join(o.projectDir, "config.yaml"),
			filepath.Join(o.projectDir, fmt.Sprintf("config.%s.yaml", env)),
		)
	}
	for _, f := range files {
		if err := loadConfigFile(v, f, true); err != nil {
			return nil, err
		}
	}
	if o.configFile != "" {
		if err := loadConfigFile(v, o.configFile, false); err != nil {
			return nil, err
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(content))

	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符，未定义且无默认值时保留原样
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad(opts ...LoadOption) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 校验配置取值范围
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return apperrors.Validationf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	p := c.Pipeline
	if p.MaxRetries < 1 {
		return apperrors.Validationf("pipeline.max_retries must be >= 1, got %d", p.MaxRetries)
	}
	if p.ContextBudget <= 0 {
		return apperrors.Validationf("pipeline.context_budget must be > 0, got %d", p.ContextBudget)
	}
	if p.PassScore < 0 || p.PassScore > 100 {
		return apperrors.Validationf("pipeline.pass_score must be within [0,100], got %d", p.PassScore)
	}
	stages := map[string]StageConfig{
		"director":  p.Stages.Director,
		"writer":    p.Stages.Writer,
		"reviewer":  p.Stages.Reviewer,
		"archivist": p.Stages.Archivist,
	}
	for name, s := range stages {
		if s.Temperature < 0 || s.Temperature > 2 {
			return apperrors.Validationf("pipeline.stages.%s.temperature must be within [0,2], got %v", name, s.Temperature)
		}
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return apperrors.Validationf("llm.retry.max_attempts must be >= 1, got %d", c.LLM.Retry.MaxAttempts)
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "novel-writer")
	v.SetDefault("app.version", "v0.1.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "127.0.0.1")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "60s")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", ".novel/novel.db")
	v.SetDefault("storage.export_markdown", true)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "postgres")
	v.SetDefault("storage.postgres.database", "novel_writer")
	v.SetDefault("storage.postgres.ssl_mode", "disable")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.max_idle_conns", 2)
	v.SetDefault("storage.postgres.conn_max_lifetime", "30m")
	v.SetDefault("storage.postgres.conn_max_idle_time", "5m")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.min_idle_conns", 1)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("cache.redis.lock_ttl", "30m")
	v.SetDefault("cache.redis.status_ttl", "168h")

	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.providers.openai.api_key", os.Getenv("OPENAI_API_KEY"))
	v.SetDefault("llm.providers.openai.base_url", os.Getenv("OPENAI_BASE_URL"))
	v.SetDefault("llm.providers.openai.model", envOr("MODEL_NAME", "gpt-4o-mini"))
	v.SetDefault("llm.providers.openai.max_tokens", 8192)
	v.SetDefault("llm.providers.openai.temperature", 0.7)
	v.SetDefault("llm.providers.openai.timeout", "180s")
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.backoff.initial", "2s")
	v.SetDefault("llm.retry.backoff.max", "30s")
	v.SetDefault("llm.retry.backoff.multiplier", 2.0)

	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.context_budget", 12000)
	v.SetDefault("pipeline.previous_tail_runes", 3000)
	v.SetDefault("pipeline.pass_score", 70)
	v.SetDefault("pipeline.lock_ttl", "30m")
	v.SetDefault("pipeline.stages.director.temperature", 0.7)
	v.SetDefault("pipeline.stages.director.max_tokens", 2048)
	v.SetDefault("pipeline.stages.writer.temperature", 0.8)
	v.SetDefault("pipeline.stages.writer.max_tokens", 8192)
	v.SetDefault("pipeline.stages.reviewer.temperature", 0.2)
	v.SetDefault("pipeline.stages.reviewer.max_tokens", 2048)
	v.SetDefault("pipeline.stages.archivist.temperature", 0.1)
	v.SetDefault("pipeline.stages.archivist.max_tokens", 2048)

	v.SetDefault("messaging.redis_stream.enabled", false)
	v.SetDefault("messaging.redis_stream.stream", "stream:novel:chapter-events")
	v.SetDefault("messaging.redis_stream.max_len", 10000)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "X-Request-ID"})
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.limit", 120)
	v.SetDefault("security.rate_limit.window", "1m")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
