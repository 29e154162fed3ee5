package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccp-p/ai-video-notes/pkg/metrics"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// NewRouter 注册所有路由
func NewRouter(api *API, m *metrics.Pipeline, cfg models.ServerConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger())
	if m != nil {
		engine.Use(Metrics(m))
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}
	engine.GET("/healthz", api.handleHealth)

	limiter := NewClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	apiGroup := engine.Group("/api")
	{
		notes := apiGroup.Group("/notes")
		notes.POST("/generate", limiter.Middleware(), api.handleGenerateNote)
		notes.GET("/:noteId", api.handleGetNote)
		notes.POST("/export/:noteId", api.handleExportNote)

		apiGroup.GET("/tasks/:taskId/status", api.handleGetTaskStatus)
		apiGroup.POST("/ai/explain", limiter.Middleware(), api.handleExplain)
		apiGroup.GET("/providers", api.handleProviders)
	}

	return engine
}

// Server HTTP服务
type Server struct {
	httpServer *http.Server
}

// New 创建HTTP服务
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start 启动监听，直到服务关闭
func (s *Server) Start() error {
	utils.Info("HTTP服务启动，监听 %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	utils.Info("正在关闭HTTP服务...")
	return s.httpServer.Shutdown(ctx)
}
