package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/younghedong/svcboot/internal/info"
	"github.com/younghedong/svcboot/internal/store"
)

// Config HTTP 服务器配置
type Config struct {
	ListenAddr  string        // 监听地址，默认 :9080
	ReadTimeout time.Duration // 请求读取超时，默认 15 秒
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  ":9080",
		ReadTimeout: 15 * time.Second,
	}
}

// Server 诊断 HTTP 服务器
type Server struct {
	config     *Config
	logger     *zap.Logger
	provider   *info.Provider
	repo       store.SnapshotRepository
	engine     *gin.Engine
	httpServer *http.Server
}

// New 创建诊断 HTTP 服务器。repo 为 nil 时 /snapshots 接口返回 503。
func New(config *Config, provider *info.Provider, repo store.SnapshotRepository, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		provider: provider,
		repo:     repo,
	}

	// 构建路由
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.handleHealth)
	engine.GET("/info", s.handleInfo)
	engine.GET("/info/process", s.handleProcess)
	engine.GET("/snapshots", s.handleSnapshots)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:        config.ListenAddr,
		Handler:     engine,
		ReadTimeout: config.ReadTimeout,
	}
	return s
}

// Start 启动 HTTP 服务器并阻塞直到 Shutdown 被调用
func (s *Server) Start() error {
	s.logger.Info("starting diagnostic server", zap.String("addr", s.config.ListenAddr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	return nil
}

// Shutdown 优雅关闭 HTTP 服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping diagnostic server gracefully")
	return s.httpServer.Shutdown(ctx)
}

// Handler 返回底层 http.Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.engine
}
