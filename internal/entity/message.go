package entity

import (
	"unicode/utf8"

	"github.com/opencove/cove/pkg/errcode"
)

// previewLimit caps the cached preview in bytes, trimmed to a rune boundary
const previewLimit = 120

// Message represents a message. Messages are immutable once created; there is
// no edit or delete flow.
type Message struct {
	Id             string  `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string  `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_created,priority:1"`
	SenderId       string  `json:"sender_id" gorm:"column:sender_id"`
	ClientMsgId    string  `json:"client_msg_id" gorm:"column:client_msg_id;index"`
	Kind           int32   `json:"kind" gorm:"column:kind"`
	Body           string  `json:"body" gorm:"column:body"`
	AttachmentURL  string  `json:"attachment_url" gorm:"column:attachment_url"`
	AttachmentName string  `json:"attachment_name" gorm:"column:attachment_name"`
	Extra          *string `json:"extra" gorm:"column:extra;type:json"`
	CreatedAt      int64   `json:"created_at" gorm:"column:created_at;index:idx_conv_created,priority:2"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Validate checks the body-or-attachment invariant
func (m *Message) Validate() error {
	if m.Body == "" && m.AttachmentURL == "" {
		return errcode.ErrEmptyMessage
	}
	return nil
}

// Preview returns the short text cached on the owning conversation
func (m *Message) Preview() string {
	if m.Body != "" {
		if len(m.Body) > previewLimit {
			// Back up to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := previewLimit
			for cut > 0 && !utf8.RuneStart(m.Body[cut]) {
				cut--
			}
			return m.Body[:cut]
		}
		return m.Body
	}
	return m.AttachmentName
}

// MessageView is a message with the sender's profile joined, as returned by
// the history endpoints and pushed over the change feed.
type MessageView struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	SenderId       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	SenderAvatar   string `json:"sender_avatar,omitempty"`
	ClientMsgId    string `json:"client_msg_id,omitempty"`
	Kind           int32  `json:"kind"`
	Body           string `json:"body,omitempty"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// ToView converts a Message to a MessageView, joining sender profile fields
// when the sender is known.
func (m *Message) ToView(sender *UserInfo) *MessageView {
	v := &MessageView{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		ClientMsgId:    m.ClientMsgId,
		Kind:           m.Kind,
		Body:           m.Body,
		AttachmentURL:  m.AttachmentURL,
		AttachmentName: m.AttachmentName,
		CreatedAt:      m.CreatedAt,
	}
	if sender != nil {
		v.SenderName = sender.Nickname
		v.SenderAvatar = sender.Avatar
	}
	return v
}
