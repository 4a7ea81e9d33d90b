package model

import (
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not exposed
	Active       bool      `json:"active"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser builds an active, non-admin user. Hashing the password is the
// caller's job so tests can build users without paying for bcrypt.
func NewUser(username, email, passwordHash string, createdAt time.Time) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		Admin:        false,
		CreatedAt:    createdAt,
	}
}

// UserStatus is what an authenticated user may see about themselves.
type UserStatus struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

func (u *User) Status() *UserStatus {
	return &UserStatus{Username: u.Username, Email: u.Email, Active: u.Active}
}

// UserDetail is the public view of a single user.
type UserDetail struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Detail() *UserDetail {
	return &UserDetail{Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// UserSummary is one row of the user listing.
type UserSummary struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}
