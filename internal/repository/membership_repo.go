package repository

import (
	"context"
	"errors"

	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/pkg/constant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepo is the repository for membership operations
type MembershipRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewMembershipRepo creates a new MembershipRepo
func NewMembershipRepo(db *gorm.DB, rdb *redis.Client) *MembershipRepo {
	return &MembershipRepo{db: db, rdb: rdb}
}

// Upsert creates a membership, or reactivates it when the user had left.
// The last_read_at watermark is preserved across rejoins.
func (r *MembershipRepo) Upsert(ctx context.Context, tx *gorm.DB, member *entity.Membership) error {
	now := entity.NowUnixMilli()
	if member.JoinedAt == 0 {
		member.JoinedAt = now
	}
	member.CreatedAt = now
	member.UpdatedAt = now

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     constant.MemberStatusNormal,
			"joined_at":  member.JoinedAt,
			"updated_at": now,
		}),
	}).Create(member).Error
}

// Get gets a membership regardless of status. Returns nil, nil when not found.
func (r *MembershipRepo) Get(ctx context.Context, conversationId, userId string) (*entity.Membership, error) {
	var member entity.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetActive gets an active membership. Returns nil, nil when the user is not
// an active member.
func (r *MembershipRepo) GetActive(ctx context.Context, conversationId, userId string) (*entity.Membership, error) {
	member, err := r.Get(ctx, conversationId, userId)
	if err != nil {
		return nil, err
	}
	if member == nil || !member.IsNormal() {
		return nil, nil
	}
	return member, nil
}

// ActiveMemberIds returns the user ids of all active members
func (r *MembershipRepo) ActiveMemberIds(ctx context.Context, conversationId string) ([]string, error) {
	var userIds []string
	err := r.db.WithContext(ctx).
		Model(&entity.Membership{}).
		Where("conversation_id = ? AND status = ?", conversationId, constant.MemberStatusNormal).
		Pluck("user_id", &userIds).Error
	if err != nil {
		return nil, err
	}
	return userIds, nil
}

// ListMembers returns active members with profile fields joined
func (r *MembershipRepo) ListMembers(ctx context.Context, conversationId string) ([]*entity.MemberInfo, error) {
	var members []*entity.MemberInfo
	err := r.db.WithContext(ctx).
		Table("memberships m").
		Select("m.user_id, u.nickname, u.avatar, m.role_level, m.last_read_at, m.joined_at").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.conversation_id = ? AND m.status = ?", conversationId, constant.MemberStatusNormal).
		Order("m.role_level DESC, m.joined_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AdvanceLastReadAt moves the viewer's watermark forward, never backward.
// Returns the stored watermark.
func (r *MembershipRepo) AdvanceLastReadAt(ctx context.Context, conversationId, userId string, readAt int64) (int64, error) {
	err := r.db.WithContext(ctx).
		Model(&entity.Membership{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"last_read_at": gorm.Expr("GREATEST(last_read_at, ?)", readAt),
			"updated_at":   entity.NowUnixMilli(),
		}).Error
	if err != nil {
		return 0, err
	}

	member, err := r.Get(ctx, conversationId, userId)
	if err != nil {
		return 0, err
	}
	if member == nil {
		return 0, gorm.ErrRecordNotFound
	}
	return member.LastReadAt, nil
}

// MarkLeft marks a membership as left
func (r *MembershipRepo) MarkLeft(ctx context.Context, conversationId, userId string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Membership{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"status":     constant.MemberStatusLeft,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}

// UpdateRole updates a member's role level
func (r *MembershipRepo) UpdateRole(ctx context.Context, conversationId, userId string, roleLevel int32) error {
	return r.db.WithContext(ctx).
		Model(&entity.Membership{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"role_level": roleLevel,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}
