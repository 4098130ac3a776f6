package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/internal/repository"
	"github.com/opencove/cove/pkg/errcode"
	"gorm.io/gorm"
)

// UserService handles user profile logic
type UserService struct {
	userRepo *repository.UserRepo
}

// NewUserService creates a new UserService
func NewUserService(userRepo *repository.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUserInfo gets a user's public profile
func (s *UserService) GetUserInfo(ctx context.Context, userId string) (*entity.UserInfo, error) {
	user, err := s.userRepo.GetById(ctx, userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrUserNotFound
		}
		log.CtxError(ctx, "get user failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return user.ToUserInfo(), nil
}

// GetUsersInfo gets public profiles for several users
func (s *UserService) GetUsersInfo(ctx context.Context, userIds []string) ([]*entity.UserInfo, error) {
	users, err := s.userRepo.GetByIds(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "get users failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.UserInfo, 0, len(users))
	for _, id := range userIds {
		if u, ok := users[id]; ok {
			result = append(result, u.ToUserInfo())
		}
	}
	return result, nil
}

// UpdateUserRequest represents user profile update request
type UpdateUserRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// UpdateUser updates a user's profile
func (s *UserService) UpdateUser(ctx context.Context, userId string, req *UpdateUserRequest) error {
	updates := make(map[string]interface{})
	if req.Nickname != "" {
		updates["nickname"] = req.Nickname
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if req.Bio != "" {
		updates["bio"] = req.Bio
	}

	if len(updates) == 0 {
		return nil
	}

	if err := s.userRepo.Update(ctx, userId, updates); err != nil {
		log.CtxError(ctx, "update user failed: user_id=%s, error=%v", userId, err)
		return errcode.ErrInternalServer
	}

	return nil
}
