package userrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/domain/auth"
)

// SQLiteRepository persists users in a local SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository wraps an opened database (see sqlitedb.Open).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts a new user row.
func (r *SQLiteRepository) Create(ctx context.Context, username, email, passwordHash string) (auth.User, error) {
	created := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, username, email, passwordHash, created)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.User{}, auth.ErrEmailExists
		}
		return auth.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return auth.User{}, err
	}
	return auth.User{ID: id, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: created}, nil
}

// GetByEmail fetches a user by email.
func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

// GetByID fetches by primary key.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

// UserExists reports whether an account with id is stored.
func (r *SQLiteRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg any) (auth.User, bool, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, err
	}
	return user, true, nil
}

var (
	_ auth.Repository       = (*SQLiteRepository)(nil)
	_ assessment.UserLookup = (*SQLiteRepository)(nil)
)
