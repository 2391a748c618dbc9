package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpen_Migrates(t *testing.T) {
	db := newTestDB(t)
	assert.True(t, db.Migrator().HasTable(&Snapshot{}))
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "snapshots.db")

	db, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	repo := NewSnapshotRepository(db, zap.NewNop())
	require.NoError(t, repo.Save(context.Background(), &Snapshot{PID: 1}))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSnapshotRepository_SaveAndRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db, zap.NewNop())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 1; i <= 3; i++ {
		snap := &Snapshot{
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			PID:        int32(100 + i),
			ParentPID:  1,
			CPUs:       4,
			Goroutines: 10 * i,
			HeapUsed:   int64(i) * 1024,
		}
		require.NoError(t, repo.Save(ctx, snap))
		assert.NotZero(t, snap.ID)
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int32(103), recent[0].PID, "newest snapshot first")
	assert.Equal(t, int32(102), recent[1].PID)

	// 非法 limit 取默认值
	all, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	all, err = repo.Recent(ctx, -5)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSnapshotRepository_Recent_Empty(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db, zap.NewNop())

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSnapshotRepository_PurgeOlderThan(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	old := &Snapshot{CreatedAt: now.Add(-2 * time.Hour), PID: 1}
	fresh := &Snapshot{CreatedAt: now, PID: 2}
	require.NoError(t, repo.Save(ctx, old))
	require.NoError(t, repo.Save(ctx, fresh))

	purged, err := repo.PurgeOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	remaining, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int32(2), remaining[0].PID)

	// 再次清理没有可删记录
	purged, err = repo.PurgeOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, purged)
}
