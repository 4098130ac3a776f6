package gateway

import (
	"encoding/json"

	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/pkg/constant"
)

// Event is the change-feed envelope pushed to connected clients. The payload
// shape depends on Type; clients dispatch on Type and ConversationId.
type Event struct {
	Type           string          `json:"type"`
	ConversationId string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	At             int64           `json:"at"`
}

// ReadPayload is the payload of a conversation.read event
type ReadPayload struct {
	UserId     string `json:"user_id"`
	LastReadAt int64  `json:"last_read_at"`
}

// NewMessageEvent builds a message.new event carrying the full message view
func NewMessageEvent(view *entity.MessageView) (*Event, error) {
	payload, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:           constant.EventMessageNew,
		ConversationId: view.ConversationId,
		Payload:        payload,
		At:             entity.NowUnixMilli(),
	}, nil
}

// NewReadEvent builds a conversation.read event so the reader's other
// sessions can flip their unread indicators.
func NewReadEvent(conversationId, userId string, lastReadAt int64) (*Event, error) {
	payload, err := json.Marshal(&ReadPayload{UserId: userId, LastReadAt: lastReadAt})
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:           constant.EventConversationRead,
		ConversationId: conversationId,
		Payload:        payload,
		At:             entity.NowUnixMilli(),
	}, nil
}

// NewNotificationEvent builds a notification.new event
func NewNotificationEvent(n *entity.Notification) (*Event, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:    constant.EventNotificationNew,
		Payload: payload,
		At:      entity.NowUnixMilli(),
	}, nil
}

// broadcastFrame is the wire format published on the Redis feed channel so
// every server instance can deliver to its locally connected targets.
type broadcastFrame struct {
	UserIds []string `json:"user_ids"`
	Event   *Event   `json:"event"`
}
