package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-api/internal/auth"
	"user-api/internal/domain"
	"user-api/internal/policy"
	"user-api/internal/repository"
)

// UserService describes account management operations. Every call that acts
// on behalf of somebody takes the acting identity explicitly.
type UserService interface {
	CreateUser(ctx context.Context, actor domain.Identity, in domain.CreateUserInput) (*domain.User, error)
	UpdateProfile(ctx context.Context, actor domain.Identity, login string, in domain.UpdateProfileInput) (*domain.User, error)
	ChangePassword(ctx context.Context, actor domain.Identity, login, newPassword, currentPassword string) error
	ChangeLogin(ctx context.Context, actor domain.Identity, oldLogin, newLogin string) (*domain.User, error)
	ListActiveUsers(ctx context.Context, actor domain.Identity) ([]domain.User, error)
	ListAllUsers(ctx context.Context, actor domain.Identity) ([]domain.User, error)
	ListOlderThan(ctx context.Context, actor domain.Identity, age int) ([]domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (*domain.User, error)
	GetUser(ctx context.Context, actor domain.Identity, login string) (*domain.User, error)
	GetPersonalInfo(ctx context.Context, actor domain.Identity, password string) (*domain.User, error)
	Authenticate(ctx context.Context, login, password string) (*domain.User, error)
	SoftDelete(ctx context.Context, actor domain.Identity, login string) error
	Restore(ctx context.Context, actor domain.Identity, login string) error
	HardDelete(ctx context.Context, actor domain.Identity, login string) error
	EnsureAdmin(ctx context.Context, login, password string) error
}

// Option configures the user service.
type Option func(*userService)

// WithClock overrides the time source used for audit stamps.
func WithClock(now func() time.Time) Option {
	return func(s *userService) {
		s.now = now
	}
}

type userService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, hasher auth.PasswordHasher, logger logrus.FieldLogger, opts ...Option) UserService {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	s := &userService{
		users:  users,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) CreateUser(ctx context.Context, actor domain.Identity, in domain.CreateUserInput) (*domain.User, error) {
	if !policy.CanCreate(actor) {
		return nil, fmt.Errorf("%w: only admins can create users", domain.ErrPermissionDenied)
	}

	in.Login = strings.TrimSpace(in.Login)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	unique, err := s.users.IsLoginUnique(ctx, in.Login)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, fmt.Errorf("%w: login must be unique", domain.ErrValidation)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Login:        in.Login,
		PasswordHash: hash,
		Name:         in.Name,
		Gender:       in.Gender,
		Birthday:     in.Birthday,
		Admin:        in.Admin,
		CreatedAt:    now,
		CreatedBy:    actor.Login,
		ModifiedAt:   now,
		ModifiedBy:   actor.Login,
	}

	stored, err := s.users.Add(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"login": stored.Login, "actor": actor.Login, "admin": stored.Admin}).Info("user created")
	return sanitizeUser(stored), nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor domain.Identity, login string, in domain.UpdateProfileInput) (*domain.User, error) {
	updated, err := s.modify(ctx, actor, policy.ActionUpdateProfile, login, func(u *domain.User) error {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			in.Name = &name
		}
		if err := validateUpdate(in); err != nil {
			return err
		}
		if in.Name != nil {
			u.Name = *in.Name
		}
		if in.Gender != nil {
			u.Gender = *in.Gender
		}
		if in.Birthday != nil {
			b := *in.Birthday
			u.Birthday = &b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"login": updated.Login, "actor": actor.Login}).Info("user profile updated")
	return sanitizeUser(updated), nil
}

// ChangePassword lets an admin reset any password. Owners must confirm with
// their current password, checked against their own stored digest. The new
// password is only validated and hashed once the caller is known to be
// allowed to change it.
func (s *userService) ChangePassword(ctx context.Context, actor domain.Identity, login, newPassword, currentPassword string) error {
	updated, err := s.modify(ctx, actor, policy.ActionChangePassword, login, func(u *domain.User) error {
		if !actor.Admin && !s.hasher.Matches(u.PasswordHash, currentPassword) {
			return fmt.Errorf("%w: current password does not match", domain.ErrPermissionDenied)
		}
		if err := validatePassword(newPassword); err != nil {
			return err
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"login": updated.Login, "actor": actor.Login}).Info("user password changed")
	return nil
}

func (s *userService) ChangeLogin(ctx context.Context, actor domain.Identity, oldLogin, newLogin string) (*domain.User, error) {
	newLogin = strings.TrimSpace(newLogin)

	updated, err := s.modify(ctx, actor, policy.ActionChangeLogin, oldLogin, func(u *domain.User) error {
		if err := validateLogin(newLogin); err != nil {
			return err
		}
		u.Login = newLogin
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLoginTaken) {
			return nil, fmt.Errorf("%w: new login is already taken", domain.ErrValidation)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"login": updated.Login, "previous_login": oldLogin, "actor": actor.Login}).Info("user login changed")
	return sanitizeUser(updated), nil
}

func (s *userService) ListActiveUsers(ctx context.Context, actor domain.Identity) ([]domain.User, error) {
	if !policy.CanList(actor) {
		return nil, fmt.Errorf("%w: admin access required", domain.ErrPermissionDenied)
	}
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return sanitizeUsers(users), nil
}

func (s *userService) ListAllUsers(ctx context.Context, actor domain.Identity) ([]domain.User, error) {
	if !policy.CanList(actor) {
		return nil, fmt.Errorf("%w: admin access required", domain.ErrPermissionDenied)
	}
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return sanitizeUsers(users), nil
}

func (s *userService) ListOlderThan(ctx context.Context, actor domain.Identity, age int) ([]domain.User, error) {
	if !policy.CanList(actor) {
		return nil, fmt.Errorf("%w: admin access required", domain.ErrPermissionDenied)
	}
	if age < 0 {
		return nil, fmt.Errorf("%w: age must not be negative", domain.ErrValidation)
	}
	users, err := s.users.ListOlderThan(ctx, age)
	if err != nil {
		return nil, err
	}
	return sanitizeUsers(users), nil
}

// GetUserByLogin performs no authorization; callers gate access themselves.
// A nil user means the login is unknown.
func (s *userService) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) GetUser(ctx context.Context, actor domain.Identity, login string) (*domain.User, error) {
	if !policy.AllowedLogin(actor, policy.ActionReadProfile, login) {
		return nil, fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
	}
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, login)
	}
	return sanitizeUser(user), nil
}

func (s *userService) GetPersonalInfo(ctx context.Context, actor domain.Identity, password string) (*domain.User, error) {
	if actor.Anonymous() {
		return nil, domain.ErrAuthentication
	}
	return s.verify(ctx, actor.Login, password)
}

func (s *userService) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, domain.ErrAuthentication
	}
	user, err := s.verify(ctx, login, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			s.logger.WithField("login", login).Warn("authentication rejected")
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) SoftDelete(ctx context.Context, actor domain.Identity, login string) error {
	return s.lifecycle(ctx, actor, policy.ActionSoftDelete, login, "user revoked", func() (bool, error) {
		return s.users.SoftDelete(ctx, login, actor.Login)
	})
}

func (s *userService) Restore(ctx context.Context, actor domain.Identity, login string) error {
	return s.lifecycle(ctx, actor, policy.ActionRestore, login, "user restored", func() (bool, error) {
		return s.users.Restore(ctx, login)
	})
}

func (s *userService) HardDelete(ctx context.Context, actor domain.Identity, login string) error {
	return s.lifecycle(ctx, actor, policy.ActionHardDelete, login, "user purged", func() (bool, error) {
		return s.users.HardDelete(ctx, login)
	})
}

// lifecycle runs an admin-only store operation whose lookup and write are
// atomic in the store, turning a missing login into ErrNotFound.
func (s *userService) lifecycle(ctx context.Context, actor domain.Identity, action policy.Action, login, event string, op func() (bool, error)) error {
	if !policy.AllowedLogin(actor, action, login) {
		return fmt.Errorf("%w: admin access required", domain.ErrPermissionDenied)
	}
	found, err := op()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, login)
	}
	s.logger.WithFields(logrus.Fields{"login": login, "actor": actor.Login}).Info(event)
	return nil
}

// modify resolves the target inside the store's critical section, applies
// the update checks in order (missing, revoked, not permitted), runs fn and
// stamps the audit fields. Nothing is written when any step fails.
func (s *userService) modify(ctx context.Context, actor domain.Identity, action policy.Action, login string, fn func(u *domain.User) error) (*domain.User, error) {
	updated, err := s.users.Modify(ctx, login, func(u *domain.User) error {
		if !u.Active() {
			return fmt.Errorf("%w: cannot modify a deleted account", domain.ErrInvalidState)
		}
		if !policy.Allowed(actor, action, u) {
			return fmt.Errorf("%w: access denied", domain.ErrPermissionDenied)
		}
		if err := fn(u); err != nil {
			return err
		}
		u.ModifiedAt = s.now().UTC()
		u.ModifiedBy = actor.Login
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, login)
	}
	return updated, nil
}

func (s *userService) verify(ctx context.Context, login, password string) (*domain.User, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() || !s.hasher.Matches(user.PasswordHash, password) {
		return nil, domain.ErrAuthentication
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := user.Clone()
	clean.PasswordHash = ""
	return clean
}

func sanitizeUsers(users []domain.User) []domain.User {
	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *sanitizeUser(&users[i])
	}
	return out
}
