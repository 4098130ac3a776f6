package gateway

import "errors"

// Gateway errors
var (
	ErrConnClosed       = errors.New("connection closed")
	ErrWriteChannelFull = errors.New("write channel full")
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrTokenInvalid     = errors.New("token invalid")
	ErrPanic            = errors.New("panic error")
)
