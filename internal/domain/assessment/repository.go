package assessment

import "context"

// Repository persists assessment records.
type Repository interface {
	// Create stores a new record and returns it with ID set. It returns
	// ErrUserNotFound when the owner does not exist.
	Create(ctx context.Context, record Record) (Record, error)
	// FindLatest returns the newest record for a user, or false.
	FindLatest(ctx context.Context, userID int64) (Record, bool, error)
	// FindHistory returns all records for a user, newest first.
	FindHistory(ctx context.Context, userID int64) ([]Record, error)
}

// UserLookup checks whether an account exists.
type UserLookup interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}
