package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultRecentLimit Recent 未指定条数时的默认值
const DefaultRecentLimit = 20

// SnapshotRepository 快照仓库接口
type SnapshotRepository interface {
	// Save 写入一条快照记录
	Save(ctx context.Context, snap *Snapshot) error
	// Recent 按时间倒序返回最近的快照，limit 不合法时取默认值
	Recent(ctx context.Context, limit int) ([]Snapshot, error)
	// PurgeOlderThan 删除 cutoff 之前的快照，返回删除条数
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type snapshotRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSnapshotRepository 创建快照仓库
func NewSnapshotRepository(db *gorm.DB, logger *zap.Logger) SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &snapshotRepository{
		db:     db,
		logger: logger.Named("snapshot_repository"),
	}
}

func (r *snapshotRepository) Save(ctx context.Context, snap *Snapshot) error {
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		r.logger.Error("failed to save snapshot", zap.Error(err))
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var snaps []Snapshot
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		r.logger.Error("failed to list snapshots", zap.Error(err))
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

func (r *snapshotRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&Snapshot{})
	if result.Error != nil {
		r.logger.Error("failed to purge snapshots", zap.Error(result.Error))
		return 0, fmt.Errorf("purge snapshots: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Debug("purged expired snapshots",
			zap.Int64("count", result.RowsAffected),
			zap.Time("cutoff", cutoff),
		)
	}
	return result.RowsAffected, nil
}
