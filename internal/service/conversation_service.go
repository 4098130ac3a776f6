package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/internal/repository"
	"github.com/opencove/cove/pkg/constant"
	"github.com/opencove/cove/pkg/errcode"
	"github.com/opencove/cove/pkg/idgen"
	"gorm.io/gorm"
)

// FeedPusher delivers change-feed events to connected clients. Delivery is
// best-effort; the SDK's polling backstop covers missed events.
type FeedPusher interface {
	PushMessage(view *entity.MessageView, userIds []string)
	PushRead(conversationId, userId string, lastReadAt int64)
	PushNotification(n *entity.Notification)
}

// ConversationService handles conversation and membership logic
type ConversationService struct {
	convRepo   *repository.ConversationRepo
	memberRepo *repository.MembershipRepo
	userRepo   *repository.UserRepo
	repos      *repository.Repositories
	pusher     FeedPusher
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo:   repos.Conversation,
		memberRepo: repos.Membership,
		userRepo:   repos.User,
		repos:      repos,
	}
}

// SetPusher sets the feed pusher
func (s *ConversationService) SetPusher(pusher FeedPusher) {
	s.pusher = pusher
}

// List gets one page of the viewer's conversations, most recently active first
func (s *ConversationService) List(ctx context.Context, userId string, offset, limit int) ([]*entity.ConversationSummary, error) {
	summaries, err := s.convRepo.ListForUser(ctx, userId, offset, limit)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return summaries, nil
}

// Get gets a single conversation summary for the viewer
func (s *ConversationService) Get(ctx context.Context, userId, conversationId string) (*entity.ConversationSummary, error) {
	summary, err := s.convRepo.SummaryForUser(ctx, userId, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if summary == nil {
		return nil, errcode.ErrConvNotFound
	}
	return summary, nil
}

// OpenDirect opens (or reuses) the direct conversation between the caller and
// peer. The id is derived from the sorted pair, so opening twice between the
// same two users always lands on the same row.
func (s *ConversationService) OpenDirect(ctx context.Context, userId, peerId string) (*entity.ConversationSummary, error) {
	if peerId == "" {
		return nil, errcode.ErrInvalidParam
	}
	if peerId == userId {
		return nil, errcode.ErrSelfConversation
	}

	if _, err := s.userRepo.GetById(ctx, peerId); err != nil {
		return nil, errcode.ErrUserNotFound
	}

	conversationId := entity.DirectConversationId(userId, peerId)

	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		conv := &entity.Conversation{
			Id:        conversationId,
			IsGroup:   false,
			CreatorId: userId,
		}
		if err := s.convRepo.Create(ctx, tx, conv); err != nil {
			return err
		}

		for _, memberId := range []string{userId, peerId} {
			member := &entity.Membership{
				ConversationId: conversationId,
				UserId:         memberId,
				RoleLevel:      constant.RoleLevelMember,
			}
			if err := s.memberRepo.Upsert(ctx, tx, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.CtxError(ctx, "open direct conversation failed: user_id=%s, peer_id=%s, error=%v", userId, peerId, err)
		return nil, errcode.ErrInternalServer
	}

	return s.Get(ctx, userId, conversationId)
}

// CreateGroupRequest represents group creation request
type CreateGroupRequest struct {
	Title     string   `json:"title"`
	Avatar    string   `json:"avatar,omitempty"`
	MemberIds []string `json:"member_ids,omitempty"`
}

// CreateGroup creates a group conversation with the caller as owner. Any set
// of three or more parties is always a group; it never collapses onto an
// existing direct conversation.
func (s *ConversationService) CreateGroup(ctx context.Context, userId string, req *CreateGroupRequest) (*entity.ConversationSummary, error) {
	if req.Title == "" {
		return nil, errcode.ErrInvalidParam
	}

	groupId, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate group id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	conversationId := entity.GroupConversationId(groupId)

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		conv := &entity.Conversation{
			Id:        conversationId,
			IsGroup:   true,
			Title:     req.Title,
			Avatar:    req.Avatar,
			CreatorId: userId,
		}
		if err := s.convRepo.Create(ctx, tx, conv); err != nil {
			return err
		}

		owner := &entity.Membership{
			ConversationId: conversationId,
			UserId:         userId,
			RoleLevel:      constant.RoleLevelOwner,
		}
		if err := s.memberRepo.Upsert(ctx, tx, owner); err != nil {
			return err
		}

		for _, memberId := range req.MemberIds {
			if memberId == userId {
				continue
			}
			member := &entity.Membership{
				ConversationId: conversationId,
				UserId:         memberId,
				RoleLevel:      constant.RoleLevelMember,
			}
			if err := s.memberRepo.Upsert(ctx, tx, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.CtxError(ctx, "create group failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "group created: conversation_id=%s, owner=%s", conversationId, userId)
	return s.Get(ctx, userId, conversationId)
}

// Join adds the caller to a group conversation
func (s *ConversationService) Join(ctx context.Context, userId, conversationId string) (*entity.ConversationSummary, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if !conv.IsGroup {
		return nil, errcode.ErrNoPermission
	}

	existing, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if existing != nil {
		return s.Get(ctx, userId, conversationId)
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		member := &entity.Membership{
			ConversationId: conversationId,
			UserId:         userId,
			RoleLevel:      constant.RoleLevelMember,
		}
		return s.memberRepo.Upsert(ctx, tx, member)
	})
	if err != nil {
		log.CtxError(ctx, "join conversation failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return nil, errcode.ErrInternalServer
	}

	return s.Get(ctx, userId, conversationId)
}

// Leave removes the caller from a group conversation. The owner cannot leave
// the lobby or a group they own.
func (s *ConversationService) Leave(ctx context.Context, userId, conversationId string) error {
	if conversationId == entity.LobbyConversationId() {
		return errcode.ErrLobbyImmutable
	}

	member, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return errcode.ErrInternalServer
	}
	if member == nil {
		return errcode.ErrNotMember
	}
	if member.IsOwner() {
		return errcode.ErrNoPermission
	}

	if err := s.memberRepo.MarkLeft(ctx, conversationId, userId); err != nil {
		log.CtxError(ctx, "leave conversation failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return errcode.ErrInternalServer
	}
	return nil
}

// Members lists active members of a conversation the caller belongs to
func (s *ConversationService) Members(ctx context.Context, userId, conversationId string) ([]*entity.MemberInfo, error) {
	member, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	members, err := s.memberRepo.ListMembers(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "list members failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	return members, nil
}

// MarkRead advances the caller's read watermark to now. The stored value is
// monotone (GREATEST), so it ends up at or past the newest message's
// created_at at the time of marking. A read event is pushed so the caller's
// other sessions can flip their unread indicators.
func (s *ConversationService) MarkRead(ctx context.Context, userId, conversationId string) (int64, error) {
	member, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return 0, errcode.ErrInternalServer
	}
	if member == nil {
		return 0, errcode.ErrNotMember
	}

	readAt, err := s.memberRepo.AdvanceLastReadAt(ctx, conversationId, userId, entity.NowUnixMilli())
	if err != nil {
		log.CtxError(ctx, "mark read failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return 0, errcode.ErrInternalServer
	}

	if s.pusher != nil {
		s.pusher.PushRead(conversationId, userId, readAt)
	}
	return readAt, nil
}

// TotalUnread returns the viewer's badge count across all conversations
func (s *ConversationService) TotalUnread(ctx context.Context, userId string) (int64, error) {
	total, err := s.convRepo.TotalUnreadForUser(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "total unread failed: user_id=%s, error=%v", userId, err)
		return 0, errcode.ErrInternalServer
	}
	return total, nil
}

// EnsureLobby creates the global room if it does not exist yet. Called once
// at startup.
func (s *ConversationService) EnsureLobby(ctx context.Context) error {
	conversationId := entity.LobbyConversationId()

	return s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		conv := &entity.Conversation{
			Id:      conversationId,
			IsGroup: true,
			Title:   "Lobby",
		}
		return s.convRepo.Create(ctx, tx, conv)
	})
}

// EnterLobby resolves the global room for the caller, joining on first entry
func (s *ConversationService) EnterLobby(ctx context.Context, userId string) (*entity.ConversationSummary, error) {
	conversationId := entity.LobbyConversationId()

	existing, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if existing == nil {
		err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
			member := &entity.Membership{
				ConversationId: conversationId,
				UserId:         userId,
				RoleLevel:      constant.RoleLevelMember,
			}
			return s.memberRepo.Upsert(ctx, tx, member)
		})
		if err != nil {
			log.CtxError(ctx, "enter lobby failed: user_id=%s, error=%v", userId, err)
			return nil, errcode.ErrInternalServer
		}
	}

	return s.Get(ctx, userId, conversationId)
}
