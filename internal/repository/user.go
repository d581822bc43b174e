package repository

import (
	"context"

	"user-api/internal/domain"
)

// MutateFunc edits a copy of a stored user. Returning an error aborts the
// mutation and leaves the stored record untouched.
type MutateFunc func(user *domain.User) error

// UserRepository is the concurrency-safe store of user records. Lookups by
// login are case-insensitive. Absence is reported as a nil user, not an error.
// Every returned record is a copy owned by the caller.
type UserRepository interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// Modify runs fn and the write it produces in one critical section. A
	// changed login is re-checked for uniqueness; a changed ID is ignored.
	Modify(ctx context.Context, login string, fn MutateFunc) (*domain.User, error)
	ListActive(ctx context.Context) ([]domain.User, error)
	ListAll(ctx context.Context) ([]domain.User, error)
	ListOlderThan(ctx context.Context, age int) ([]domain.User, error)
	// SoftDelete, Restore and HardDelete report whether a record held the
	// login. A missing login is a no-op, not an error.
	SoftDelete(ctx context.Context, login, revokedBy string) (bool, error)
	Restore(ctx context.Context, login string) (bool, error)
	HardDelete(ctx context.Context, login string) (bool, error)
	IsLoginUnique(ctx context.Context, login string) (bool, error)
}
