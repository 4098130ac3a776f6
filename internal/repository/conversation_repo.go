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

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// Create creates a conversation. The id is derived deterministically for
// direct conversations, so a concurrent open between the same pair resolves
// to a single row via DoNothing.
func (r *ConversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *entity.Conversation) error {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(conv).Error
}

// GetById gets a conversation by id. Returns nil, nil when not found.
func (r *ConversationRepo) GetById(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", conversationId).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// summarySelect is the joined projection used by the list and single-summary
// queries: conversation columns plus the viewer's membership and a count of
// messages newer than the viewer's watermark sent by someone else.
const summarySelect = `
	c.*,
	m.role_level,
	m.last_read_at,
	(SELECT COUNT(*) FROM messages ms
		WHERE ms.conversation_id = c.id
		  AND ms.created_at > m.last_read_at
		  AND ms.sender_id <> m.user_id) AS unread_count,
	(SELECT COUNT(*) FROM memberships mc
		WHERE mc.conversation_id = c.id AND mc.status = 0) AS member_count
`

// ListForUser gets one page of the viewer's conversations ordered by
// most-recent-activity descending, with unread counts joined in.
func (r *ConversationRepo) ListForUser(ctx context.Context, userId string, offset, limit int) ([]*entity.ConversationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var results []*entity.ConversationSummary
	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(summarySelect).
		Joins("JOIN memberships m ON m.conversation_id = c.id AND m.user_id = ? AND m.status = ?",
			userId, constant.MemberStatusNormal).
		Order("GREATEST(c.last_msg_at, c.updated_at) DESC, c.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	for _, s := range results {
		s.PeerUserId = entity.DirectPeerId(s.Conversation.Id, userId)
	}
	return results, nil
}

// SummaryForUser gets a single conversation summary for the viewer.
// Returns nil, nil when the viewer is not an active member.
func (r *ConversationRepo) SummaryForUser(ctx context.Context, userId, conversationId string) (*entity.ConversationSummary, error) {
	var result entity.ConversationSummary
	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(summarySelect).
		Joins("JOIN memberships m ON m.conversation_id = c.id AND m.user_id = ? AND m.status = ?",
			userId, constant.MemberStatusNormal).
		Where("c.id = ?", conversationId).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	if result.Conversation.Id == "" {
		return nil, nil
	}
	result.PeerUserId = entity.DirectPeerId(result.Conversation.Id, userId)
	return &result, nil
}

// TotalUnreadForUser sums unread counts over all of the viewer's active
// conversations, for the header badge.
func (r *ConversationRepo) TotalUnreadForUser(ctx context.Context, userId string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Table("messages ms").
		Joins("JOIN memberships m ON m.conversation_id = ms.conversation_id AND m.user_id = ? AND m.status = ?",
			userId, constant.MemberStatusNormal).
		Where("ms.created_at > m.last_read_at AND ms.sender_id <> ?", userId).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Update updates conversation fields
func (r *ConversationRepo) Update(ctx context.Context, conversationId string, updates map[string]interface{}) error {
	updates["updated_at"] = entity.NowUnixMilli()
	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conversationId).
		Updates(updates).Error
}

// BumpLastMessage caches the newest message on the conversation row inside
// the send transaction, so list ordering and previews stay consistent with
// the inserted message.
func (r *ConversationRepo) BumpLastMessage(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	return tx.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", msg.ConversationId).
		Updates(map[string]interface{}{
			"last_msg_id":        msg.Id,
			"last_msg_preview":   msg.Preview(),
			"last_msg_sender_id": msg.SenderId,
			"last_msg_at":        msg.CreatedAt,
			"updated_at":         msg.CreatedAt,
		}).Error
}
