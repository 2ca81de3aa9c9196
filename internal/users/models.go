package users

import (
	"errors"
	"strings"
)

var (
	ErrNotFound            = errors.New("user not found")
	ErrUsernameUnavailable = errors.New("This username is unavailable.")
	ErrEmailInUse          = errors.New("This email is already linked to another account.")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

type User struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       *string `json:"email"`
	IsStaff     bool    `json:"is_staff"`
	IsSuperuser bool    `json:"is_superuser"`
	DateJoined  int64   `json:"date_joined"`
}

// Role maps account flags onto rbac role names.
func (u User) Role() string {
	if u.IsStaff || u.IsSuperuser {
		return "admin"
	}
	return "user"
}

// NewUser is the registration payload.
type NewUser struct {
	Username    string `json:"username" validate:"required,min=2,max=32"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=128,notnumeric"`
	IsStaff     bool   `json:"-"`
	IsSuperuser bool   `json:"-"`
}

// UserUpdate carries the editable fields; nil means unchanged.
type UserUpdate struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=32"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128,notnumeric"`
}

// normalizeEmail lower-cases the domain part; blank means no email.
func normalizeEmail(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[:i] + strings.ToLower(s[i:])
	}
	return &s
}
