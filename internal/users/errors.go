package users

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("login already registered")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidSeed        = errors.New("invalid user seed")
)
