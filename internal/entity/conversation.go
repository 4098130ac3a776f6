package entity

import "github.com/opencove/cove/pkg/constant"

// Conversation represents a direct or group conversation. One row per
// conversation; per-member state lives in Membership. The last_* columns cache
// the newest message so the list endpoint needs no per-row message query.
type Conversation struct {
	Id              string  `json:"id" gorm:"column:id;primaryKey"`
	IsGroup         bool    `json:"is_group" gorm:"column:is_group"`
	Title           string  `json:"title" gorm:"column:title"`
	Avatar          string  `json:"avatar" gorm:"column:avatar"`
	CreatorId       string  `json:"creator_id" gorm:"column:creator_id"`
	LastMsgId       string  `json:"last_msg_id" gorm:"column:last_msg_id"`
	LastMsgPreview  string  `json:"last_msg_preview" gorm:"column:last_msg_preview"`
	LastMsgSenderId string  `json:"last_msg_sender_id" gorm:"column:last_msg_sender_id"`
	LastMsgAt       int64   `json:"last_msg_at" gorm:"column:last_msg_at"`
	Extra           *string `json:"extra" gorm:"column:extra;type:json"`
	CreatedAt       int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt       int64   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// Membership pairs a user with a conversation. LastReadAt is the unread
// watermark: a message is unread iff it is newer than LastReadAt and was not
// sent by the member.
type Membership struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:idx_member,priority:1"`
	UserId         string `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_member,priority:2"`
	RoleLevel      int32  `json:"role_level" gorm:"column:role_level"`
	Status         int32  `json:"status" gorm:"column:status"`
	LastReadAt     int64  `json:"last_read_at" gorm:"column:last_read_at"`
	JoinedAt       int64  `json:"joined_at" gorm:"column:joined_at"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Membership
func (Membership) TableName() string {
	return "memberships"
}

// IsNormal checks if the membership is active
func (m *Membership) IsNormal() bool {
	return m.Status == constant.MemberStatusNormal
}

// IsOwner checks if the member owns the conversation
func (m *Membership) IsOwner() bool {
	return m.RoleLevel == constant.RoleLevelOwner
}

// IsAdmin checks if the member is an admin or the owner
func (m *Membership) IsAdmin() bool {
	return m.RoleLevel >= constant.RoleLevelAdmin
}

// ConversationSummary is a conversation joined with the viewer's membership
// and derived unread state, as returned by the list endpoint.
type ConversationSummary struct {
	Conversation
	PeerUserId  string `json:"peer_user_id,omitempty"`
	RoleLevel   int32  `json:"role_level"`
	LastReadAt  int64  `json:"last_read_at"`
	UnreadCount int64  `json:"unread_count"`
	MemberCount int64  `json:"member_count"`
}

// IsUnreadFor reports whether the conversation carries unread messages for
// the viewer: the last message exists, is newer than the viewer's watermark
// and was sent by someone else.
func (s *ConversationSummary) IsUnreadFor(viewerId string) bool {
	if s.LastMsgId == "" {
		return false
	}
	if s.LastMsgSenderId == viewerId {
		return false
	}
	return s.LastMsgAt > s.LastReadAt
}

// MemberInfo represents a member in a conversation with profile fields joined
type MemberInfo struct {
	UserId     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	Avatar     string `json:"avatar"`
	RoleLevel  int32  `json:"role_level"`
	LastReadAt int64  `json:"last_read_at"`
	JoinedAt   int64  `json:"joined_at"`
}
