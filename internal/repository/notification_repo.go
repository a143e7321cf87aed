package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promptlab-api/internal/models"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// NotificationFilter narrows one user's notification list.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationRepository stores owner notifications. Every read and write is
// scoped to the owning user.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) owned(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxNotificationLimit {
		limit = defaultNotificationLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.owned(ctx, userID)
	if filter.UnreadOnly {
		query = query.Where(map[string]interface{}{"read": false})
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.owned(ctx, userID).Where(map[string]interface{}{"read": false}).Count(&count).Error
	return count, err
}

// MarkRead flags one notification in a single UPDATE. Marking an already
// read notification succeeds and returns it unchanged.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint) (models.Notification, error) {
	result := r.owned(ctx, userID).Where("id = ?", id).Update("read", true)
	if result.Error != nil {
		return models.Notification{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Notification{}, gorm.ErrRecordNotFound
	}

	var notification models.Notification
	if err := r.owned(ctx, userID).Where("id = ?", id).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

// MarkAllRead returns how many notifications changed.
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := r.owned(ctx, userID).Where(map[string]interface{}{"read": false}).Update("read", true)
	return result.RowsAffected, result.Error
}
