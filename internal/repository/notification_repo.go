package repository

import (
	"context"

	"github.com/opencove/cove/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NotificationRepo is the repository for notification operations
type NotificationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewNotificationRepo creates a new NotificationRepo
func NewNotificationRepo(db *gorm.DB, rdb *redis.Client) *NotificationRepo {
	return &NotificationRepo{db: db, rdb: rdb}
}

// Create creates a notification
func (r *NotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if n.CreatedAt == 0 {
		n.CreatedAt = entity.NowUnixMilli()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

// CreateBatch creates notifications for several users in one insert
func (r *NotificationRepo) CreateBatch(ctx context.Context, ns []*entity.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	now := entity.NowUnixMilli()
	for _, n := range ns {
		if n.CreatedAt == 0 {
			n.CreatedAt = now
		}
	}
	return r.db.WithContext(ctx).Create(ns).Error
}

// ListForUser gets one page of a user's notifications, newest first
func (r *NotificationRepo) ListForUser(ctx context.Context, userId string, offset, limit int) ([]*entity.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var ns []*entity.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&ns).Error
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// UnreadCount counts unread notifications for a user
func (r *NotificationRepo) UnreadCount(ctx context.Context, userId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND `read` = ?", userId, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead marks specific notifications as read. The user filter keeps one
// user from flipping another's rows.
func (r *NotificationRepo) MarkRead(ctx context.Context, userId string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND id IN ?", userId, ids).
		Update("read", true).Error
}

// MarkAllRead marks all of a user's notifications as read
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userId string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND `read` = ?", userId, false).
		Update("read", true).Error
}
