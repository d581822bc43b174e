package memory

import (
	"testing"
	"time"

	"user-api/internal/repository"
	"user-api/internal/repository/repotest"
)

func TestUserRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T, now func() time.Time) repository.UserRepository {
		return NewUserRepository(WithClock(now))
	})
}
