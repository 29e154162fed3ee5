package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ccp-p/ai-video-notes/internal/controller"
	"github.com/ccp-p/ai-video-notes/internal/janitor"
	"github.com/ccp-p/ai-video-notes/internal/server"
	"github.com/ccp-p/ai-video-notes/internal/watcher"
	"github.com/ccp-p/ai-video-notes/pkg/export"
	"github.com/ccp-p/ai-video-notes/pkg/glossary"
	"github.com/ccp-p/ai-video-notes/pkg/llm"
	"github.com/ccp-p/ai-video-notes/pkg/media"
	"github.com/ccp-p/ai-video-notes/pkg/metrics"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/prompt"
	"github.com/ccp-p/ai-video-notes/pkg/runner"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/store/memstore"
	"github.com/ccp-p/ai-video-notes/pkg/store/redisstore"
	"github.com/ccp-p/ai-video-notes/pkg/store/sqlstore"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
	"github.com/ccp-p/ai-video-notes/pkg/worker"
)

// App 组装好的应用组件
type App struct {
	Config       *models.Config
	Metrics      *metrics.Pipeline
	Stores       *store.Stores
	Caller       *llm.RetryingCaller
	Registry     *llm.Registry
	Prompts      *prompt.Loader
	Media        *media.Stage
	Pool         *worker.Pool
	Orchestrator *controller.TaskOrchestrator
	Explainer    *glossary.Explainer
	Exporter     *export.MarkdownExporter

	janitor *janitor.Janitor
	monitor *watcher.FileMonitor
	closers []func() error
}

// LoadConfig 读取配置文件与环境变量，configFile 为空时使用默认配置
func LoadConfig(configFile, envFile string) (*models.Config, error) {
	cfg := models.NewDefaultConfig()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("加载配置文件 %s 失败: %w", configFile, err)
		}
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New 按配置创建全部组件，runner 为空时使用系统命令
func New(ctx context.Context, cfg *models.Config, r runner.Runner) (*App, error) {
	if err := utils.InitLoggerWithOptions(cfg.Log.Level, cfg.Log.File, utils.LogOptions{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	app := &App{Config: cfg, Metrics: metrics.NewPipeline()}

	stores, err := openStores(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	app.Stores = stores
	if stores.Close != nil {
		app.closers = append(app.closers, stores.Close)
	}

	app.Prompts, err = prompt.NewLoader(cfg.Prompt.NoteTemplatePath)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	app.Caller = llm.NewRetryingCaller(&http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second}, utils.RetryPolicy{
		MaxAttempts: cfg.LLM.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		Multiplier:  cfg.LLM.Retry.Multiplier,
		Retryable:   llm.IsServerError,
	})
	app.Registry = llm.NewRegistry(cfg.LLM.DefaultProvider,
		llm.NewGeminiProvider(cfg.LLM.Gemini, app.Caller, app.Prompts),
		llm.NewOpenAIProvider(llm.ProviderOpenAI, cfg.LLM.OpenAI, app.Caller),
		llm.NewOpenAIProvider(llm.ProviderVolces, cfg.LLM.Volces, app.Caller),
	)
	if _, err := app.Registry.Resolve(""); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("默认提供商无效: %w", err)
	}

	app.Media = media.NewStage(cfg.Media, r)

	app.Pool = worker.NewPool(worker.Options{
		CoreSize:      cfg.Worker.CoreSize,
		MaxSize:       cfg.Worker.MaxSize,
		QueueCapacity: cfg.Worker.QueueCapacity,
		KeepAlive:     time.Duration(cfg.Worker.KeepAliveSeconds) * time.Second,
	})
	app.registerPoolGauges()

	recorder := &recorder{metrics: app.Metrics, registry: app.Registry}
	app.Orchestrator = controller.NewTaskOrchestrator(controller.Deps{
		Tasks:             stores.Tasks,
		Notes:             stores.Notes,
		Media:             app.Media,
		Providers:         app.Registry,
		Pool:              app.Pool,
		Recorder:          recorder,
		GenerationTimeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	app.Explainer = glossary.NewExplainer(stores.Glossary, app.Registry, recorder)
	app.Exporter = export.NewMarkdownExporter("notes", app.Explainer)

	if cfg.Media.JanitorSchedule != "" {
		app.janitor, err = janitor.New(app.Media.WorkspaceRoot(), media.WorkspacePrefix, cfg.Media.JanitorSchedule,
			time.Duration(cfg.Media.WorkspaceMaxAge)*time.Minute)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
	}

	if cfg.Prompt.Watch && cfg.Prompt.NoteTemplatePath != "" {
		app.monitor, err = watcher.NewFileMonitor(cfg.Prompt.NoteTemplatePath, app.Prompts.OnFileChanged, 500*time.Millisecond)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
	}

	return app, nil
}

func openStores(ctx context.Context, cfg models.StoreConfig) (*store.Stores, error) {
	var (
		stores *store.Stores
		pg     *sqlstore.Store
	)
	openSQL := func() (*sqlstore.Store, error) {
		if pg != nil {
			return pg, nil
		}
		s, err := sqlstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := s.Install(ctx); err != nil {
			s.Close()
			return nil, err
		}
		pg = s
		return s, nil
	}

	switch cfg.Driver {
	case "postgres":
		s, err := openSQL()
		if err != nil {
			return nil, err
		}
		stores = s.Stores()
	default:
		stores = memstore.New().Stores()
	}

	switch cfg.TaskDriver {
	case "memory":
		stores.Tasks = memstore.New()
	case "postgres":
		s, err := openSQL()
		if err != nil {
			return nil, err
		}
		stores.Tasks = s
		stores.Close = s.Close
	case "redis":
		rs, err := redisstore.Dial(ctx, cfg.Redis)
		if err != nil {
			if stores.Close != nil {
				stores.Close()
			}
			return nil, err
		}
		stores.Tasks = rs
		stores.Close = chainClose(stores.Close, rs.Close)
	}

	utils.Info("存储已初始化: driver=%s task_driver=%s", cfg.Driver, cfg.TaskDriver)
	return stores, nil
}

func chainClose(fns ...func() error) func() error {
	return func() error {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

func (a *App) registerPoolGauges() {
	a.Metrics.RegisterGauge("pool_workers", "线程池当前工作协程数", func() float64 {
		return float64(a.Pool.Stats().Workers)
	})
	a.Metrics.RegisterGauge("pool_active", "正在执行的任务数", func() float64 {
		return float64(a.Pool.Stats().Active)
	})
	a.Metrics.RegisterGauge("pool_queued", "排队中的任务数", func() float64 {
		return float64(a.Pool.Stats().Queued)
	})
}

// Router HTTP路由
func (a *App) Router() *gin.Engine {
	api := server.NewAPI(a.Orchestrator, a.Explainer, a.Exporter, a.Registry, a.Pool.Stats)
	return server.NewRouter(api, a.Metrics, a.Config.Server)
}

// Start 启动后台组件: 工作目录清理与模板热加载
func (a *App) Start() error {
	if a.janitor != nil {
		a.janitor.Start()
	}
	if a.monitor != nil {
		if err := a.monitor.Start(); err != nil {
			return fmt.Errorf("启动模板监控失败: %w", err)
		}
	}
	return nil
}

// Close 等待任务结束并释放资源
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Caller != nil {
		a.Caller.Retrier().PrintErrorStats()
	}
	if err := utils.CloseLogger(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// recorder 同时写入监控指标与提供商统计
type recorder struct {
	metrics  *metrics.Pipeline
	registry *llm.Registry
}

func (r *recorder) TaskFinished(status string) {
	r.metrics.TaskFinished(status)
}

func (r *recorder) ObserveStage(stage string, d time.Duration) {
	r.metrics.ObserveStage(stage, d)
}

func (r *recorder) ProviderCall(provider, operation string, success bool) {
	r.metrics.ProviderCall(provider, operation, success)
	r.registry.ReportResult(provider, success)
}

func (r *recorder) GlossaryLookup(result string) {
	r.metrics.GlossaryLookup(result)
}
