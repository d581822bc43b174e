package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"user-api/internal/domain"
	"user-api/internal/repository"
)

// Option configures a UserRepository.
type Option func(*UserRepository)

// WithClock overrides the time source used for revocation stamps and age queries.
func WithClock(now func() time.Time) Option {
	return func(r *UserRepository) {
		r.now = now
	}
}

// UserRepository keeps user records in process memory. A single RWMutex
// guards both the ordered slice and the login index.
type UserRepository struct {
	mu      sync.RWMutex
	users   []*domain.User
	byLogin map[string]*domain.User
	now     func() time.Time
}

func NewUserRepository(opts ...Option) repository.UserRepository {
	r := &UserRepository{
		byLogin: make(map[string]*domain.User),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *UserRepository) Init(ctx context.Context) error {
	return nil
}

func (r *UserRepository) Add(ctx context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := loginKey(user.Login)
	if _, exists := r.byLogin[key]; exists {
		return nil, domain.ErrLoginTaken
	}

	stored := user.Clone()
	r.users = append(r.users, stored)
	r.byLogin[key] = stored
	return stored.Clone(), nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byLogin[loginKey(login)].Clone(), nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexByID(user.ID)
	if idx < 0 {
		return nil
	}
	current := r.users[idx]
	if !domain.SameLogin(current.Login, user.Login) {
		if _, taken := r.byLogin[loginKey(user.Login)]; taken {
			return domain.ErrLoginTaken
		}
	}
	r.replace(idx, user.Clone())
	return nil
}

func (r *UserRepository) Modify(ctx context.Context, login string, fn repository.MutateFunc) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byLogin[loginKey(login)]
	if !ok {
		return nil, nil
	}

	draft := current.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = current.ID

	if !domain.SameLogin(current.Login, draft.Login) {
		if _, taken := r.byLogin[loginKey(draft.Login)]; taken {
			return nil, domain.ErrLoginTaken
		}
	}
	r.replace(r.indexByID(current.ID), draft)
	return draft.Clone(), nil
}

func (r *UserRepository) ListActive(ctx context.Context) ([]domain.User, error) {
	return r.list(func(u *domain.User) bool { return u.Active() }), nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]domain.User, error) {
	return r.list(func(*domain.User) bool { return true }), nil
}

func (r *UserRepository) ListOlderThan(ctx context.Context, age int) ([]domain.User, error) {
	now := r.now()
	return r.list(func(u *domain.User) bool {
		return u.Birthday != nil && domain.YearsSince(*u.Birthday, now) > age
	}), nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, login, revokedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byLogin[loginKey(login)]
	if !ok {
		return false, nil
	}
	revokedAt := r.now().UTC()
	user.RevokedAt = &revokedAt
	user.RevokedBy = revokedBy
	return true, nil
}

func (r *UserRepository) Restore(ctx context.Context, login string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byLogin[loginKey(login)]
	if !ok {
		return false, nil
	}
	user.RevokedAt = nil
	user.RevokedBy = ""
	return true, nil
}

func (r *UserRepository) HardDelete(ctx context.Context, login string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := loginKey(login)
	user, ok := r.byLogin[key]
	if !ok {
		return false, nil
	}
	delete(r.byLogin, key)
	idx := r.indexByID(user.ID)
	r.users = append(r.users[:idx], r.users[idx+1:]...)
	return true, nil
}

func (r *UserRepository) IsLoginUnique(ctx context.Context, login string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.byLogin[loginKey(login)]
	return !exists, nil
}

// list copies matching records ordered by creation time. Insertion order
// breaks ties so enumeration stays stable.
func (r *UserRepository) list(keep func(*domain.User) bool) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if keep(u) {
			out = append(out, *u.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// replace swaps the record at idx and keeps the login index in step.
// Callers hold the write lock.
func (r *UserRepository) replace(idx int, next *domain.User) {
	prev := r.users[idx]
	delete(r.byLogin, loginKey(prev.Login))
	r.users[idx] = next
	r.byLogin[loginKey(next.Login)] = next
}

func (r *UserRepository) indexByID(id string) int {
	for i, u := range r.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func loginKey(login string) string {
	return strings.ToLower(login)
}
