package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/internal/repository"
	"github.com/opencove/cove/pkg/errcode"
)

// NotificationService handles notification logic
type NotificationService struct {
	notifRepo *repository.NotificationRepo
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repos *repository.Repositories) *NotificationService {
	return &NotificationService{notifRepo: repos.Notification}
}

// List gets one page of the caller's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userId string, offset, limit int) ([]*entity.Notification, error) {
	ns, err := s.notifRepo.ListForUser(ctx, userId, offset, limit)
	if err != nil {
		log.CtxError(ctx, "list notifications failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return ns, nil
}

// UnreadCount counts the caller's unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userId string) (int64, error) {
	count, err := s.notifRepo.UnreadCount(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "count unread notifications failed: user_id=%s, error=%v", userId, err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}

// MarkReadRequest represents mark notifications read request
type MarkReadRequest struct {
	Ids []string `json:"ids,omitempty"`
	All bool     `json:"all,omitempty"`
}

// MarkRead marks notifications as read, either a specific set or all
func (s *NotificationService) MarkRead(ctx context.Context, userId string, req *MarkReadRequest) error {
	var err error
	if req.All {
		err = s.notifRepo.MarkAllRead(ctx, userId)
	} else {
		err = s.notifRepo.MarkRead(ctx, userId, req.Ids)
	}
	if err != nil {
		log.CtxError(ctx, "mark notifications read failed: user_id=%s, error=%v", userId, err)
		return errcode.ErrInternalServer
	}
	return nil
}
