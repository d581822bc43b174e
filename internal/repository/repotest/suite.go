// Package repotest holds the behavioural checks every UserRepository driver
// must pass.
package repotest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-api/internal/domain"
	"user-api/internal/repository"
)

// Factory builds an initialised, empty repository that reads time from now.
type Factory func(t *testing.T, now func() time.Time) repository.UserRepository

var baseTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func NewUser(login string, createdAt time.Time) *domain.User {
	return &domain.User{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: "hash-" + login,
		Name:         "Name",
		Gender:       1,
		CreatedAt:    createdAt,
		CreatedBy:    "admin",
		ModifiedAt:   createdAt,
		ModifiedBy:   "admin",
	}
}

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// Run executes the whole suite against repositories built by factory.
func Run(t *testing.T, factory Factory) {
	clock := func() time.Time { return baseTime }
	ctx := context.Background()

	t.Run("AddAndGetIgnoreCase", func(t *testing.T) {
		repo := factory(t, clock)
		added, err := repo.Add(ctx, NewUser("Alice", baseTime))
		require.NoError(t, err)
		assert.Equal(t, "Alice", added.Login)

		got, err := repo.GetByLogin(ctx, "aLiCe")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, added.ID, got.ID)
		assert.Equal(t, "hash-Alice", got.PasswordHash)
		assert.True(t, got.CreatedAt.Equal(baseTime))
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		repo := factory(t, clock)
		got, err := repo.GetByLogin(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		got, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		got.Name = "Changed"

		again, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Name", again.Name)
	})

	t.Run("AddDuplicateLoginFails", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		_, err = repo.Add(ctx, NewUser("ALICE", baseTime))
		require.ErrorIs(t, err, domain.ErrLoginTaken)
		assert.ErrorIs(t, err, domain.ErrValidation)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("RevokedLoginStillBlocksReuse", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)
		_, err = repo.SoftDelete(ctx, "alice", "admin")
		require.NoError(t, err)

		unique, err := repo.IsLoginUnique(ctx, "Alice")
		require.NoError(t, err)
		assert.False(t, unique)

		_, err = repo.Add(ctx, NewUser("alice", baseTime))
		assert.ErrorIs(t, err, domain.ErrLoginTaken)
	})

	t.Run("UpdateReplacesByID", func(t *testing.T) {
		repo := factory(t, clock)
		added, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		added.Name = "Alicia"
		added.Gender = 2
		require.NoError(t, repo.Update(ctx, added))

		got, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alicia", got.Name)
		assert.Equal(t, 2, got.Gender)
	})

	t.Run("UpdateMissingIsNoop", func(t *testing.T) {
		repo := factory(t, clock)
		require.NoError(t, repo.Update(ctx, NewUser("ghost", baseTime)))

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ModifyAppliesAndKeepsID", func(t *testing.T) {
		repo := factory(t, clock)
		added, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		updated, err := repo.Modify(ctx, "ALICE", func(u *domain.User) error {
			u.ID = "other"
			u.Login = "alicia"
			u.Name = "Alicia"
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, added.ID, updated.ID)
		assert.Equal(t, "alicia", updated.Login)

		old, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, old)

		got, err := repo.GetByLogin(ctx, "alicia")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, added.ID, got.ID)
		assert.Equal(t, "Alicia", got.Name)
	})

	t.Run("ModifyErrorLeavesRecordUntouched", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = repo.Modify(ctx, "alice", func(u *domain.User) error {
			u.Name = "Changed"
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Name", got.Name)
	})

	t.Run("ModifyRenameConflict", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)
		_, err = repo.Add(ctx, NewUser("bob", baseTime))
		require.NoError(t, err)

		_, err = repo.Modify(ctx, "alice", func(u *domain.User) error {
			u.Login = "Bob"
			return nil
		})
		require.ErrorIs(t, err, domain.ErrLoginTaken)

		got, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.Login)
	})

	t.Run("ModifyCaseOnlyRename", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		updated, err := repo.Modify(ctx, "alice", func(u *domain.User) error {
			u.Login = "Alice"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice", updated.Login)
	})

	t.Run("ModifyMissingReturnsNil", func(t *testing.T) {
		repo := factory(t, clock)
		called := false
		got, err := repo.Modify(ctx, "ghost", func(u *domain.User) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.False(t, called)
	})

	t.Run("ListActiveOrderedAndExcludesRevoked", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("carol", baseTime.Add(2*time.Minute)))
		require.NoError(t, err)
		_, err = repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)
		_, err = repo.Add(ctx, NewUser("bob", baseTime.Add(time.Minute)))
		require.NoError(t, err)
		_, err = repo.SoftDelete(ctx, "bob", "admin")
		require.NoError(t, err)

		active, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "carol"}, logins(active))

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, logins(all))
	})

	t.Run("SoftDeleteAndRestore", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("bob", baseTime))
		require.NoError(t, err)

		found, err := repo.SoftDelete(ctx, "BOB", "admin")
		require.NoError(t, err)
		assert.True(t, found)
		got, err := repo.GetByLogin(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, got.RevokedAt.Equal(baseTime))
		assert.Equal(t, "admin", got.RevokedBy)
		assert.False(t, got.Active())

		found, err = repo.Restore(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, found)
		got, err = repo.GetByLogin(ctx, "bob")
		require.NoError(t, err)
		assert.Nil(t, got.RevokedAt)
		assert.Empty(t, got.RevokedBy)

		active, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, logins(active))
	})

	t.Run("LifecycleOnMissingIsNoop", func(t *testing.T) {
		repo := factory(t, clock)
		found, err := repo.SoftDelete(ctx, "ghost", "admin")
		assert.NoError(t, err)
		assert.False(t, found)
		found, err = repo.Restore(ctx, "ghost")
		assert.NoError(t, err)
		assert.False(t, found)
		found, err = repo.HardDelete(ctx, "ghost")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("HardDeleteFreesLogin", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)
		_, err = repo.Add(ctx, NewUser("bob", baseTime))
		require.NoError(t, err)

		found, err := repo.HardDelete(ctx, "Alice")
		require.NoError(t, err)
		assert.True(t, found)
		got, err := repo.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, got)

		unique, err := repo.IsLoginUnique(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, unique)

		_, err = repo.Add(ctx, NewUser("alice", baseTime))
		require.NoError(t, err)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, logins(all))
	})

	t.Run("ListOlderThanUsesYearDifference", func(t *testing.T) {
		repo := factory(t, clock)
		older := NewUser("older", baseTime)
		older.Birthday = date(2000, time.December, 31)
		boundary := NewUser("boundary", baseTime)
		boundary.Birthday = date(2001, time.January, 1)
		laterThisYear := NewUser("later", baseTime)
		laterThisYear.Birthday = date(2000, time.November, 30)
		noBirthday := NewUser("unknown", baseTime)

		for _, u := range []*domain.User{older, boundary, laterThisYear, noBirthday} {
			_, err := repo.Add(ctx, u)
			require.NoError(t, err)
		}

		got, err := repo.ListOlderThan(ctx, 25)
		require.NoError(t, err)
		// 2026-2000 = 26 for both 2000 birthdays even though November has not come yet
		assert.ElementsMatch(t, []string{"older", "later"}, logins(got))
	})

	t.Run("ConcurrentAddSameLogin", func(t *testing.T) {
		repo := factory(t, clock)
		const workers = 32

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			conflicts atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Add(ctx, NewUser("Racer", baseTime))
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, domain.ErrLoginTaken):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load())
		assert.Equal(t, int32(workers-1), conflicts.Load())
	})

	t.Run("ConcurrentHardDeleteFindsOnce", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("doomed", baseTime))
		require.NoError(t, err)

		const workers = 16
		var (
			wg    sync.WaitGroup
			found atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.HardDelete(ctx, "doomed")
				assert.NoError(t, err)
				if ok {
					found.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), found.Load())
	})

	t.Run("ConcurrentModifyLosesNoUpdates", func(t *testing.T) {
		repo := factory(t, clock)
		_, err := repo.Add(ctx, NewUser("counter", baseTime))
		require.NoError(t, err)

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Modify(ctx, "counter", func(u *domain.User) error {
					u.Gender++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetByLogin(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, 1+workers, got.Gender)
	})
}

func logins(users []domain.User) []string {
	out := make([]string, len(users))
	for i := range users {
		out[i] = users[i].Login
	}
	return out
}
