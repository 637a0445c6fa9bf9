package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrEmptyMessage        = fmt.Errorf("message content is empty")
	ErrNoSignalChannel     = fmt.Errorf("signal channel is not initialized")
	ErrNotInitialized      = fmt.Errorf("client is not initialized")
	ErrConversationUnknown = fmt.Errorf("conversation does not exist")
	ErrUserUnknown         = fmt.Errorf("user does not exist")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity requirements")
	ErrRoomFull            = fmt.Errorf("room already has two participants")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
)
