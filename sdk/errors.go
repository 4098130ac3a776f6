package sdk

import "fmt"

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam    = 1001
	CodeInternalServer  = 1002
	CodeUnauthorized    = 1003
	CodeForbidden       = 1004
	CodeNotFound        = 1005
	CodeTooManyRequests = 1006
	CodeNoPermission    = 1007

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeTokenMissing  = 2003
	CodeLoginFailed   = 2004
	CodeUserNotFound  = 2005
	CodeEmailTaken    = 2006
	CodePasswordWrong = 2007

	// Conversation errors (3xxx)
	CodeConvNotFound     = 3001
	CodeNotMember        = 3002
	CodeMemberLeft       = 3003
	CodeAlreadyMember    = 3004
	CodeNotOwner         = 3005
	CodeSelfConversation = 3006
	CodeLobbyImmutable   = 3007

	// Message errors (4xxx)
	CodeMessageNotFound = 4001
	CodeEmptyMessage    = 4002
	CodeSendFailed      = 4003
	CodeHistoryFailed   = 4004

	// Upload errors (5xxx)
	CodeUploadFailed   = 5001
	CodeUploadTooLarge = 5002
	CodeUploadBadType  = 5003
)

// Predefined errors
var (
	ErrInvalidParam   = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized   = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden      = NewError(CodeForbidden, "forbidden")
	ErrNotFound       = NewError(CodeNotFound, "not found")
	ErrNoPermission   = NewError(CodeNoPermission, "no permission to access this resource")

	ErrTokenInvalid  = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenMissing  = NewError(CodeTokenMissing, "token missing")
	ErrEmailTaken    = NewError(CodeEmailTaken, "email already registered")
	ErrUserNotFound  = NewError(CodeUserNotFound, "user not found")
	ErrPasswordWrong = NewError(CodePasswordWrong, "password wrong")

	ErrConvNotFound     = NewError(CodeConvNotFound, "conversation not found")
	ErrNotMember        = NewError(CodeNotMember, "not a conversation member")
	ErrSelfConversation = NewError(CodeSelfConversation, "cannot open a conversation with yourself")

	ErrEmptyMessage = NewError(CodeEmptyMessage, "message needs a body or an attachment")
)
