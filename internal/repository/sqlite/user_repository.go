package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"user-api/internal/domain"
	"user-api/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	login TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	gender INTEGER NOT NULL,
	birthday TEXT,
	admin INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	created_by TEXT NOT NULL,
	modified_at TEXT NOT NULL,
	modified_by TEXT NOT NULL,
	revoked_at TEXT,
	revoked_by TEXT NOT NULL DEFAULT ''
);
`

const selectUserColumns = `
SELECT id, login, password_hash, name, gender, birthday, admin,
	created_at, created_by, modified_at, modified_by, revoked_at, revoked_by
FROM users`

// fixed width so text ordering matches chronological ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Option func(*UserRepository)

// WithClock overrides the time source used for revocation stamps and age queries.
func WithClock(now func() time.Time) Option {
	return func(r *UserRepository) {
		r.now = now
	}
}

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB, opts ...Option) repository.UserRepository {
	r := &UserRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Add(ctx context.Context, user *domain.User) (*domain.User, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, login, password_hash, name, gender, birthday, admin,
	created_at, created_by, modified_at, modified_by, revoked_at, revoked_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Login,
		user.PasswordHash,
		user.Name,
		user.Gender,
		formatOptionalTime(user.Birthday),
		user.Admin,
		formatTime(user.CreatedAt),
		user.CreatedBy,
		formatTime(user.ModifiedAt),
		user.ModifiedBy,
		formatOptionalTime(user.RevokedAt),
		user.RevokedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrLoginTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user.Clone(), nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return getByLogin(ctx, r.db, login)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	return updateUser(ctx, r.db, user)
}

func (r *UserRepository) Modify(ctx context.Context, login string, fn repository.MutateFunc) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin modify user: %w", err)
	}
	defer tx.Rollback()

	current, err := getByLogin(ctx, tx, login)
	if err != nil || current == nil {
		return nil, err
	}

	draft := current.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = current.ID

	if err := updateUser(ctx, tx, draft); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit modify user: %w", err)
	}
	return draft, nil
}

func (r *UserRepository) ListActive(ctx context.Context) ([]domain.User, error) {
	return r.query(ctx, selectUserColumns+`
WHERE revoked_at IS NULL
ORDER BY created_at, rowid`)
}

func (r *UserRepository) ListAll(ctx context.Context) ([]domain.User, error) {
	return r.query(ctx, selectUserColumns+`
ORDER BY created_at, rowid`)
}

func (r *UserRepository) ListOlderThan(ctx context.Context, age int) ([]domain.User, error) {
	users, err := r.query(ctx, selectUserColumns+`
WHERE birthday IS NOT NULL
ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}

	now := r.now()
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if domain.YearsSince(*u.Birthday, now) > age {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, login, revokedBy string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET revoked_at = ?, revoked_by = ?
WHERE login = ?`,
		formatTime(r.now()),
		revokedBy,
		login,
	)
	if err != nil {
		return false, fmt.Errorf("soft delete user: %w", err)
	}
	return affected(res)
}

func (r *UserRepository) Restore(ctx context.Context, login string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET revoked_at = NULL, revoked_by = ''
WHERE login = ?`,
		login,
	)
	if err != nil {
		return false, fmt.Errorf("restore user: %w", err)
	}
	return affected(res)
}

func (r *UserRepository) HardDelete(ctx context.Context, login string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE login = ?`, login)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected(res)
}

// affected reports whether the statement touched a row. SQLite counts rows
// matched by an UPDATE even when their values do not change.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) IsLoginUnique(ctx context.Context, login string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE login = ?`, login).Scan(&count); err != nil {
		return false, fmt.Errorf("count users by login: %w", err)
	}
	return count == 0, nil
}

func (r *UserRepository) query(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getByLogin(ctx context.Context, q execQuerier, login string) (*domain.User, error) {
	row := q.QueryRowContext(ctx, selectUserColumns+`
WHERE login = ?`,
		login,
	)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func updateUser(ctx context.Context, q execQuerier, user *domain.User) error {
	_, err := q.ExecContext(ctx, `
UPDATE users SET login = ?, password_hash = ?, name = ?, gender = ?, birthday = ?,
	modified_at = ?, modified_by = ?, revoked_at = ?, revoked_by = ?
WHERE id = ?`,
		user.Login,
		user.PasswordHash,
		user.Name,
		user.Gender,
		formatOptionalTime(user.Birthday),
		formatTime(user.ModifiedAt),
		user.ModifiedBy,
		formatOptionalTime(user.RevokedAt),
		user.RevokedBy,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrLoginTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user                  domain.User
		birthday, revokedAt   sql.NullString
		createdAt, modifiedAt string
	)
	if err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.Name,
		&user.Gender,
		&birthday,
		&user.Admin,
		&createdAt,
		&user.CreatedBy,
		&modifiedAt,
		&user.ModifiedBy,
		&revokedAt,
		&user.RevokedBy,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	if user.Birthday, err = parseOptionalTime(birthday); err != nil {
		return nil, err
	}
	if user.RevokedAt, err = parseOptionalTime(revokedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseOptionalTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
