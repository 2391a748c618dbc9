package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/younghedong/svcboot/internal/info"
)

type fakeRecorder struct {
	mu      sync.Mutex
	samples int
	errors  int
}

func (f *fakeRecorder) RecordSample(snap info.ProcessSnapshot, goroutines int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples++
}

func (f *fakeRecorder) RecordSampleError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func (f *fakeRecorder) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples, f.errors
}

func TestSampler_ImmediateSample(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db, zap.NewNop())
	recorder := &fakeRecorder{}
	provider := info.NewProvider("svcboot-test", "dev", "")

	// 超长间隔保证只发生启动时那一次采样
	sampler := NewSampler(provider, repo, recorder, SamplerConfig{Interval: time.Hour}, zap.NewNop())
	sampler.Start()
	defer sampler.Stop()

	assert.Eventually(t, func() bool {
		snaps, err := repo.Recent(context.Background(), 10)
		return err == nil && len(snaps) == 1
	}, 3*time.Second, 20*time.Millisecond)

	snaps, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Equal(t, int32(os.Getpid()), snap.PID)
	assert.GreaterOrEqual(t, snap.CPUs, 1)
	assert.Greater(t, snap.Goroutines, 0)
	assert.Greater(t, snap.HeapUsed, int64(0))
	assert.GreaterOrEqual(t, snap.HeapCommitted, snap.HeapUsed)
	assert.False(t, snap.CreatedAt.IsZero())

	assert.Eventually(t, func() bool {
		samples, _ := recorder.counts()
		return samples == 1
	}, time.Second, 10*time.Millisecond)

	_, errors := recorder.counts()
	assert.Zero(t, errors)
}

func TestSampler_PurgesExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db, zap.NewNop())
	provider := info.NewProvider("svcboot-test", "dev", "")

	stale := &Snapshot{CreatedAt: time.Now().UTC().Add(-2 * time.Hour), PID: 999}
	require.NoError(t, repo.Save(context.Background(), stale))

	sampler := NewSampler(provider, repo, nil, SamplerConfig{
		Interval:  time.Hour,
		Retention: time.Hour,
	}, zap.NewNop())
	sampler.Start()
	defer sampler.Stop()

	assert.Eventually(t, func() bool {
		snaps, err := repo.Recent(context.Background(), 10)
		if err != nil || len(snaps) != 1 {
			return false
		}
		return snaps[0].PID != 999
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSampler_RecordsErrors(t *testing.T) {
	db, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	repo := NewSnapshotRepository(db, zap.NewNop())
	recorder := &fakeRecorder{}
	provider := info.NewProvider("svcboot-test", "dev", "")

	// 关掉数据库让写入必然失败
	require.NoError(t, Close(db))

	sampler := NewSampler(provider, repo, recorder, SamplerConfig{Interval: time.Hour}, zap.NewNop())
	sampler.Start()
	defer sampler.Stop()

	assert.Eventually(t, func() bool {
		_, errors := recorder.counts()
		return errors >= 1
	}, 3*time.Second, 20*time.Millisecond)

	samples, _ := recorder.counts()
	assert.Zero(t, samples)
}

func TestNewSampler_Defaults(t *testing.T) {
	provider := info.NewProvider("svcboot-test", "dev", "")
	sampler := NewSampler(provider, nil, nil, SamplerConfig{}, nil)

	assert.Equal(t, 30*time.Second, sampler.config.Interval)
	assert.NotNil(t, sampler.logger)
}
