package service

import (
	"context"
	"fmt"

	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/internal/repository"
	"github.com/opencove/cove/pkg/constant"
	"github.com/opencove/cove/pkg/errcode"
	"github.com/opencove/cove/pkg/idgen"
	"gorm.io/gorm"
)

// MessageService handles message logic
type MessageService struct {
	msgRepo    *repository.MessageRepo
	convRepo   *repository.ConversationRepo
	memberRepo *repository.MembershipRepo
	userRepo   *repository.UserRepo
	notifRepo  *repository.NotificationRepo
	repos      *repository.Repositories
	pusher     FeedPusher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories) *MessageService {
	return &MessageService{
		msgRepo:    repos.Message,
		convRepo:   repos.Conversation,
		memberRepo: repos.Membership,
		userRepo:   repos.User,
		notifRepo:  repos.Notification,
		repos:      repos,
	}
}

// SetPusher sets the feed pusher
func (s *MessageService) SetPusher(pusher FeedPusher) {
	s.pusher = pusher
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	ClientMsgId    string `json:"client_msg_id"`
	Kind           int32  `json:"kind"`
	Body           string `json:"body,omitempty"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
}

// Send creates a message in a conversation the sender belongs to. The
// client_msg_id makes the operation idempotent: a retry returns the message
// recorded by the first attempt instead of inserting a second row.
func (s *MessageService) Send(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.MessageView, error) {
	if req.ConversationId == "" || req.ClientMsgId == "" {
		return nil, errcode.ErrInvalidParam
	}

	member, err := s.memberRepo.GetActive(ctx, req.ConversationId, senderId)
	if err != nil {
		log.CtxError(ctx, "check membership failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	existing, err := s.msgRepo.GetByClientMsgId(ctx, senderId, req.ClientMsgId)
	if err != nil {
		log.CtxError(ctx, "check idempotency failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if existing != nil {
		log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
		return s.toView(ctx, existing), nil
	}

	msgId, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate message id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	kind := req.Kind
	if kind == 0 {
		kind = constant.MsgKindText
	}

	msg := &entity.Message{
		Id:             msgId,
		ConversationId: req.ConversationId,
		SenderId:       senderId,
		ClientMsgId:    req.ClientMsgId,
		Kind:           kind,
		Body:           req.Body,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
		CreatedAt:      entity.NowUnixMilli(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
			return err
		}
		return s.convRepo.BumpLastMessage(ctx, tx, msg)
	})
	if err != nil {
		log.CtxError(ctx, "send message failed: %v", err)
		return nil, errcode.ErrSendFailed
	}

	// The sender has read their own message
	if _, err := s.memberRepo.AdvanceLastReadAt(ctx, req.ConversationId, senderId, msg.CreatedAt); err != nil {
		log.CtxWarn(ctx, "advance sender watermark failed: %v", err)
	}

	view := s.toView(ctx, msg)
	s.fanOut(ctx, view, senderId)

	log.CtxInfo(ctx, "message sent: sender_id=%s, conversation_id=%s, msg_id=%s", senderId, req.ConversationId, msg.Id)
	return view, nil
}

// fanOut pushes the message over the feed to every active member and records
// notifications for the recipients.
func (s *MessageService) fanOut(ctx context.Context, view *entity.MessageView, senderId string) {
	memberIds, err := s.memberRepo.ActiveMemberIds(ctx, view.ConversationId)
	if err != nil {
		log.CtxWarn(ctx, "fetch member ids for fan-out failed: %v", err)
		return
	}

	if s.pusher != nil {
		s.pusher.PushMessage(view, memberIds)
	}

	notifications := make([]*entity.Notification, 0, len(memberIds))
	payload := fmt.Sprintf(`{"conversation_id":%q,"message_id":%q}`, view.ConversationId, view.Id)
	for _, memberId := range memberIds {
		if memberId == senderId {
			continue
		}
		id, err := idgen.NextID()
		if err != nil {
			log.CtxWarn(ctx, "generate notification id failed: %v", err)
			continue
		}
		p := payload
		notifications = append(notifications, &entity.Notification{
			Id:       id,
			UserId:   memberId,
			Category: constant.NotifyCategoryMessage,
			Title:    view.SenderName,
			Body:     view.Body,
			Payload:  &p,
		})
	}
	if err := s.notifRepo.CreateBatch(ctx, notifications); err != nil {
		log.CtxWarn(ctx, "create message notifications failed: %v", err)
		return
	}
	if s.pusher != nil {
		for _, n := range notifications {
			s.pusher.PushNotification(n)
		}
	}
}

// History gets the newest page of a conversation's messages, ascending by
// created_at, with sender profiles joined.
func (s *MessageService) History(ctx context.Context, userId, conversationId string, limit int) ([]*entity.MessageView, error) {
	member, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	messages, err := s.msgRepo.Latest(ctx, conversationId, limit)
	if err != nil {
		log.CtxError(ctx, "fetch history failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrHistoryFailed
	}
	return s.toViews(ctx, messages), nil
}

// Older gets messages strictly older than the cursor timestamp, ascending by
// created_at, for backward pagination.
func (s *MessageService) Older(ctx context.Context, userId, conversationId string, before int64, limit int) ([]*entity.MessageView, error) {
	if before <= 0 {
		return nil, errcode.ErrInvalidParam
	}

	member, err := s.memberRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if member == nil {
		return nil, errcode.ErrNotMember
	}

	messages, err := s.msgRepo.Older(ctx, conversationId, before, limit)
	if err != nil {
		log.CtxError(ctx, "fetch older messages failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrHistoryFailed
	}
	return s.toViews(ctx, messages), nil
}

// toView joins the sender profile onto a single message
func (s *MessageService) toView(ctx context.Context, msg *entity.Message) *entity.MessageView {
	views := s.toViews(ctx, []*entity.Message{msg})
	return views[0]
}

// toViews joins sender profiles onto messages in one round trip
func (s *MessageService) toViews(ctx context.Context, messages []*entity.Message) []*entity.MessageView {
	senderIds := make([]string, 0, len(messages))
	seen := make(map[string]bool, len(messages))
	for _, m := range messages {
		if !seen[m.SenderId] {
			seen[m.SenderId] = true
			senderIds = append(senderIds, m.SenderId)
		}
	}

	senders, err := s.userRepo.GetByIds(ctx, senderIds)
	if err != nil {
		log.CtxWarn(ctx, "fetch senders failed: %v", err)
		senders = map[string]*entity.User{}
	}

	views := make([]*entity.MessageView, 0, len(messages))
	for _, m := range messages {
		var info *entity.UserInfo
		if sender, ok := senders[m.SenderId]; ok {
			info = sender.ToUserInfo()
		}
		views = append(views, m.ToView(info))
	}
	return views
}
