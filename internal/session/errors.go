package session

import "errors"

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrUserMismatch      = errors.New("connection is bound to another user")
	ErrEmptyIdentifier   = errors.New("identifier must not be empty")
)
