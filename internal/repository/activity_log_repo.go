package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/models"
)

// MaxActivityPageSize caps one page of the audit trail.
const MaxActivityPageSize = 200

// ActivityLogFilter narrows activity log queries. Zero values match all rows.
type ActivityLogFilter struct {
	Page      int
	PageSize  int
	ActorID   *uint
	ProjectID *uint
	Action    string
	NewStatus string
	Since     *time.Time
	Until     *time.Time
}

// ActivityLogRepository persists audit trail events. Entries are never updated.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (f ActivityLogFilter) apply(query *gorm.DB) *gorm.DB {
	if f.ActorID != nil {
		query = query.Where("actor_id = ?", *f.ActorID)
	}
	if f.ProjectID != nil {
		query = query.Where("project_id = ?", *f.ProjectID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.NewStatus != "" {
		query = query.Where("new_status = ?", f.NewStatus)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		query = query.Where("created_at < ?", *f.Until)
	}
	return query
}

// List returns one page, newest first, and the total matching the filter.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	query := filter.apply(r.db.WithContext(ctx).Model(&models.ActivityLog{}))

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if size := filter.PageSize; size > 0 {
		if size > MaxActivityPageSize {
			size = MaxActivityPageSize
		}
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * size).Limit(size)
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
