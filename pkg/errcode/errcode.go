package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam    = New(1001, "invalid parameter")
	ErrInternalServer  = New(1002, "internal server error")
	ErrUnauthorized    = New(1003, "unauthorized")
	ErrForbidden       = New(1004, "forbidden")
	ErrNotFound        = New(1005, "not found")
	ErrTooManyRequests = New(1006, "too many requests")
	ErrNoPermission    = New(1007, "no permission to access this resource")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid")
	ErrTokenExpired  = New(2002, "token expired")
	ErrTokenMissing  = New(2003, "token missing")
	ErrLoginFailed   = New(2004, "login failed")
	ErrUserNotFound  = New(2005, "user not found")
	ErrEmailTaken    = New(2006, "email already registered")
	ErrPasswordWrong = New(2007, "password wrong")

	// Conversation errors (3xxx)
	ErrConvNotFound     = New(3001, "conversation not found")
	ErrNotMember        = New(3002, "not a conversation member")
	ErrMemberLeft       = New(3003, "membership is not active")
	ErrAlreadyMember    = New(3004, "already a member")
	ErrNotOwner         = New(3005, "not the conversation owner")
	ErrSelfConversation = New(3006, "cannot open a direct conversation with yourself")
	ErrLobbyImmutable   = New(3007, "the lobby cannot be modified")

	// Message errors (4xxx)
	ErrMessageNotFound = New(4001, "message not found")
	ErrEmptyMessage    = New(4002, "message needs a body or an attachment")
	ErrSendFailed      = New(4003, "message send failed")
	ErrHistoryFailed   = New(4004, "message history fetch failed")

	// Upload errors (5xxx)
	ErrUploadFailed   = New(5001, "upload failed")
	ErrUploadTooLarge = New(5002, "file exceeds the size limit")
	ErrUploadBadType  = New(5003, "unsupported file type")

	// Feed/WebSocket errors (6xxx)
	ErrConnOverLimit   = New(6001, "connection over max limit")
	ErrConnClosed      = New(6002, "connection closed")
	ErrInvalidProtocol = New(6003, "invalid protocol")
	ErrPushFailed      = New(6004, "push event failed")
)
