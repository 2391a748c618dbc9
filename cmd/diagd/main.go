// Package main 是 svcboot 诊断服务的入口点
//
// 诊断服务负责：
//   - 进程与运行时自描述信息的 HTTP 查询接口
//   - 周期性进程快照采样与持久化
//   - Prometheus 指标暴露
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/younghedong/svcboot/internal/config"
	"github.com/younghedong/svcboot/internal/info"
	"github.com/younghedong/svcboot/internal/log"
	"github.com/younghedong/svcboot/internal/server"
	"github.com/younghedong/svcboot/internal/store"
)

// 版本信息 (由编译时注入)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// 命令行参数
var (
	configPath = flag.String("config", "/etc/svcboot/svcboot.yaml", "配置文件路径")
	showVer    = flag.Bool("version", false, "显示版本信息")
)

func main() {
	flag.Parse()

	// 显示版本
	if *showVer {
		fmt.Printf("svcboot diagd %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	// 加载配置
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger := log.Global()
	defer logger.Sync()

	logger.Info("diagnostic service starting",
		zap.String("service", cfg.Service.Name),
		zap.String("version", Version),
		zap.String("commit", GitCommit),
	)

	// 自描述信息提供者，身份信息在此刻固定
	provider := info.NewProvider(cfg.Service.Name, Version, cfg.Service.ID)

	// 打开快照库
	var (
		repo       store.SnapshotRepository
		closeStore func()
	)
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path, logger.WithModule("store").Zap())
		if err != nil {
			logger.Fatal("Failed to open snapshot store", zap.Error(err))
		}
		repo = store.NewSnapshotRepository(db, logger.WithModule("store").Zap())
		closeStore = func() {
			if err := store.Close(db); err != nil {
				logger.Error("Failed to close snapshot store", zap.Error(err))
			}
		}
		logger.Info("Snapshot store opened", zap.String("path", cfg.Store.Path))
	}

	// 注册指标
	metrics := server.NewMetrics("")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 启动周期采样
	var sampler *store.Sampler
	if cfg.Sampler.Enabled && repo != nil {
		sampler = store.NewSampler(provider, repo, metrics, store.SamplerConfig{
			Interval:  cfg.Sampler.Interval,
			Retention: cfg.Sampler.Retention,
		}, logger.WithModule("sampler").Zap())
		sampler.Start()
	}

	// 启动 HTTP 服务器
	srv := server.New(&server.Config{
		ListenAddr:  cfg.Server.ListenAddr,
		ReadTimeout: cfg.Server.ReadTimeout,
	}, provider, repo, logger.WithModule("server").Zap())

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭：先停采样，再关服务器，最后关存储
	if sampler != nil {
		sampler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if closeStore != nil {
		closeStore()
	}

	logger.Info("diagnostic service stopped")
}
