package user

import "errors"

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("account has been deactivated")
	ErrUserNotFound       = errors.New("user not found")
)
