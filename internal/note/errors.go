package note

import "errors"

var (
	ErrNotFound          = errors.New("note not found")
	ErrForbidden         = errors.New("note belongs to another user")
	ErrInvalidPermission = errors.New("invalid permission")
	ErrUserNotFound      = errors.New("user not found")
)
