package models

import (
	"strings"
	"time"
)

// User is an account known to the exchange; Handle is the external id
// clients send with every request.
type User struct {
	ID        int64     `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser creates a user for the given handle
func NewUser(handle string) (*User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrEmptyHandle
	}
	if len(handle) > 128 {
		return nil, ErrHandleTooLong
	}

	return &User{
		Handle:    handle,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}

var (
	ErrEmptyHandle     = PhotoError{"user handle cannot be empty"}
	ErrHandleTooLong   = PhotoError{"user handle is too long"}
	ErrDuplicateHandle = PhotoError{"user handle already exists"}
)

// CreateUserRequest is the body of the create user endpoint
type CreateUserRequest struct {
	Handle string `json:"handle"`
}
