package sdk

import "encoding/json"

// Response represents the standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// UserInfo represents public user info
type UserInfo struct {
	Id        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Conversation represents a conversation summary as seen by the viewer
type Conversation struct {
	Id             string `json:"id"`
	IsGroup        bool   `json:"is_group"`
	Title          string `json:"title"`
	Avatar         string `json:"avatar"`
	CreatorId      string `json:"creator_id,omitempty"`
	PeerUserId     string `json:"peer_user_id,omitempty"`
	RoleLevel      int32  `json:"role_level"`
	LastMsgId      string `json:"last_msg_id,omitempty"`
	LastMsgPreview string `json:"last_msg_preview,omitempty"`
	LastMsgSender  string `json:"last_msg_sender_id,omitempty"`
	LastMsgAt      int64  `json:"last_msg_at"`
	LastReadAt     int64  `json:"last_read_at"`
	UnreadCount    int64  `json:"unread_count"`
	MemberCount    int64  `json:"member_count"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Message represents a message with the sender's profile joined
type Message struct {
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

// Member represents a conversation member with profile joined
type Member struct {
	UserId    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	RoleLevel int32  `json:"role_level"`
	JoinedAt  int64  `json:"joined_at"`
}

// Notification represents a user notification
type Notification struct {
	Id        string  `json:"id"`
	UserId    string  `json:"user_id"`
	Category  string  `json:"category"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Payload   *string `json:"payload,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt int64   `json:"created_at"`
}

// Event is the change-feed envelope received over the feed connection
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

// ===== Request types =====

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token    string    `json:"token"`
	UserInfo *UserInfo `json:"user_info"`
}

// UpdateUserRequest represents user update request
type UpdateUserRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// OpenDirectRequest represents open direct conversation request
type OpenDirectRequest struct {
	PeerId string `json:"peer_id"`
}

// CreateGroupRequest represents group creation request
type CreateGroupRequest struct {
	Title     string   `json:"title"`
	Avatar    string   `json:"avatar,omitempty"`
	MemberIds []string `json:"member_ids,omitempty"`
}

// ConversationIdRequest carries a single conversation id
type ConversationIdRequest struct {
	ConversationId string `json:"conversation_id"`
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

// MarkNotificationsReadRequest represents mark notifications read request
type MarkNotificationsReadRequest struct {
	Ids []string `json:"ids,omitempty"`
	All bool     `json:"all,omitempty"`
}

// ===== Response types =====

// MarkReadResponse carries the stored read watermark after a mark-read call
type MarkReadResponse struct {
	LastReadAt int64 `json:"last_read_at"`
}

// UnreadCountResponse represents unread count response
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// UploadResult represents a completed upload
type UploadResult struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}
