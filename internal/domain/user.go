package domain

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User is the account record managed by the user service.
type User struct {
	ID           string
	Login        string
	PasswordHash string
	Name         string
	Gender       int
	Birthday     *time.Time
	Admin        bool
	CreatedAt    time.Time
	CreatedBy    string
	ModifiedAt   time.Time
	ModifiedBy   string
	RevokedAt    *time.Time
	RevokedBy    string
}

// Active reports whether the account has not been soft-deleted.
func (u *User) Active() bool {
	return u.RevokedAt == nil
}

// Role returns the role claim issued for the account.
func (u *User) Role() string {
	if u.Admin {
		return RoleAdmin
	}
	return RoleUser
}

// Clone returns a deep copy so callers never share pointers with a store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Birthday != nil {
		b := *u.Birthday
		c.Birthday = &b
	}
	if u.RevokedAt != nil {
		r := *u.RevokedAt
		c.RevokedAt = &r
	}
	return &c
}

// SameLogin compares logins the way the store indexes them.
func SameLogin(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Identity is the acting caller of a service operation. The zero value is an
// anonymous caller.
type Identity struct {
	Login string
	Admin bool
}

func (i Identity) Anonymous() bool {
	return i.Login == ""
}

// CreateUserInput carries the fields accepted when an admin creates an account.
type CreateUserInput struct {
	Login    string
	Password string
	Name     string
	Gender   int
	Birthday *time.Time
	Admin    bool
}

// UpdateProfileInput is a partial update; nil fields keep their stored value.
type UpdateProfileInput struct {
	Name     *string
	Gender   *int
	Birthday *time.Time
}

// YearsSince returns the calendar-year difference between t and now in UTC.
// Month and day are ignored, so a birthday later this year still counts.
func YearsSince(t, now time.Time) int {
	return now.UTC().Year() - t.UTC().Year()
}
