package auth

import "context"

// Repository abstracts account persistence.
type Repository interface {
	Create(ctx context.Context, username, email, passwordHash string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	GetByID(ctx context.Context, id int64) (User, bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
}
