package store

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/younghedong/svcboot/internal/info"
)

// SamplerConfig 采样器配置
type SamplerConfig struct {
	Interval  time.Duration // 采样间隔，默认 30s
	Retention time.Duration // 快照保留时长，0 表示不清理
}

// Recorder 接收每次采样结果的观测端
type Recorder interface {
	RecordSample(snap info.ProcessSnapshot, goroutines int)
	RecordSampleError()
}

// Sampler 周期性采集进程快照并写入仓库
type Sampler struct {
	provider *info.Provider
	repo     SnapshotRepository
	recorder Recorder
	config   SamplerConfig
	logger   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSampler 创建采样器；recorder 可以为 nil
func NewSampler(provider *info.Provider, repo SnapshotRepository, recorder Recorder, config SamplerConfig, logger *zap.Logger) *Sampler {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		provider: provider,
		repo:     repo,
		recorder: recorder,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动采样协程
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.runLoop()
	s.logger.Info("sampler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("retention", s.config.Retention),
	)
}

// Stop 停止采样（优雅关闭）
func (s *Sampler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("sampler stopped")
}

func (s *Sampler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// 启动时立即采样一次
	s.sampleOnce()

	for {
		select {
		case <-ticker.C:
			s.sampleOnce()
		case <-s.stopCh:
			return
		}
	}
}

// sampleOnce 采集一次快照，入库后再做过期清理
func (s *Sampler) sampleOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	procSnap := s.provider.Process().Snapshot()
	goroutines := runtime.NumGoroutine()

	snap := &Snapshot{
		PID:              procSnap.PID,
		ParentPID:        procSnap.ParentPID,
		Owner:            procSnap.Owner,
		CPUs:             procSnap.CPUs,
		Goroutines:       goroutines,
		HeapUsed:         procSnap.Memory.Heap.Used,
		HeapCommitted:    procSnap.Memory.Heap.Committed,
		HeapMax:          procSnap.Memory.Heap.Max,
		NonHeapUsed:      procSnap.Memory.NonHeap.Used,
		NonHeapCommitted: procSnap.Memory.NonHeap.Committed,
	}

	if err := s.repo.Save(ctx, snap); err != nil {
		s.logger.Error("failed to persist snapshot", zap.Error(err))
		if s.recorder != nil {
			s.recorder.RecordSampleError()
		}
		return
	}
	if s.recorder != nil {
		s.recorder.RecordSample(procSnap, goroutines)
	}

	if s.config.Retention > 0 {
		cutoff := time.Now().Add(-s.config.Retention)
		if _, err := s.repo.PurgeOlderThan(ctx, cutoff); err != nil {
			s.logger.Warn("failed to purge expired snapshots", zap.Error(err))
		}
	}
}
