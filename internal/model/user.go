package model

import (
	"github.com/google/uuid"
)

// AdminGroupName identifies the group allowed to delete events.
const AdminGroupName = "admin"

// User represents a registered member of a group
type User struct {
	Base
	GroupID      uuid.UUID `json:"group_id" db:"group_id"`
	Username     string    `json:"username" db:"username"`
	Name         string    `json:"name" db:"name"`
	Password     string    `json:"password,omitempty" db:"-"`
	PasswordHash string    `json:"-" db:"password_hash"`
}

// Group is a circle of users that share events and notifications
type Group struct {
	Base
	Name string `json:"name" db:"name"`
}

// RegisterRequest represents user registration parameters
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	GroupID  string `json:"group_id" binding:"required"`
}

// LoginRequest represents login parameters
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned on successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// SessionIdentity is the authenticated caller's identity, resolved from
// the request token and carried through the request context.
type SessionIdentity struct {
	UserID  uuid.UUID
	GroupID uuid.UUID
}
