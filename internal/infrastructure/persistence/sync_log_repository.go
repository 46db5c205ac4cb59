package persistence

import (
	"context"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// DefaultSyncLogLimit is used when FindRecent gets a non-positive limit
const DefaultSyncLogLimit = 50

// GormSyncLogRepository implements integration.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Save persists a sync log record
func (r *GormSyncLogRepository) Save(ctx context.Context, log *integration.SyncLog) error {
	var model models.SyncLogModel
	model.FromDomain(log)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindRecent returns the newest records first
func (r *GormSyncLogRepository) FindRecent(ctx context.Context, limit int) ([]integration.SyncLog, error) {
	if limit <= 0 {
		limit = DefaultSyncLogLimit
	}
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	logs := make([]integration.SyncLog, len(rows))
	for i := range rows {
		logs[i] = rows[i].ToDomain()
	}
	return logs, nil
}
