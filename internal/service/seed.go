package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-api/internal/domain"
)

const seedActor = "system"

// EnsureAdmin creates the bootstrap administrator when no account holds the
// login yet. An existing account is left as it is, revoked or not.
func (s *userService) EnsureAdmin(ctx context.Context, login, password string) error {
	login = strings.TrimSpace(login)
	if err := validateLogin(login); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := validatePassword(password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	existing, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return fmt.Errorf("seed admin lookup: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	_, err = s.users.Add(ctx, &domain.User{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: hash,
		Name:         "Admin",
		Gender:       1,
		Admin:        true,
		CreatedAt:    now,
		CreatedBy:    seedActor,
		ModifiedAt:   now,
		ModifiedBy:   seedActor,
	})
	if err != nil {
		if errors.Is(err, domain.ErrLoginTaken) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"login": login}).Info("bootstrap admin created")
	return nil
}
