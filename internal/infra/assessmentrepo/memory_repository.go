package assessmentrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
)

// MemoryRepository keeps records in process memory for tests/dev.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   assessment.UserLookup
	records map[int64][]assessment.Record
	seq     int64
}

// NewMemoryRepository checks ownership against users before every insert.
func NewMemoryRepository(users assessment.UserLookup) *MemoryRepository {
	return &MemoryRepository{
		users:   users,
		records: make(map[int64][]assessment.Record),
	}
}

// Create stores a record and assigns its id.
func (r *MemoryRepository) Create(ctx context.Context, record assessment.Record) (assessment.Record, error) {
	if r.users != nil {
		ok, err := r.users.UserExists(ctx, record.UserID)
		if err != nil {
			return assessment.Record{}, err
		}
		if !ok {
			return assessment.Record{}, assessment.ErrUserNotFound
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	record.ID = r.seq
	if record.Geo != nil {
		geo := *record.Geo
		record.Geo = &geo
	}
	r.records[record.UserID] = append(r.records[record.UserID], record)
	return record, nil
}

// FindLatest returns the newest record for a user.
func (r *MemoryRepository) FindLatest(ctx context.Context, userID int64) (assessment.Record, bool, error) {
	history, err := r.FindHistory(ctx, userID)
	if err != nil || len(history) == 0 {
		return assessment.Record{}, false, err
	}
	return history[0], true, nil
}

// FindHistory returns a user's records, newest first. Ties on the
// timestamp keep the later insert first.
func (r *MemoryRepository) FindHistory(_ context.Context, userID int64) ([]assessment.Record, error) {
	r.mu.RLock()
	stored := r.records[userID]
	out := make([]assessment.Record, len(stored))
	copy(out, stored)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ assessment.Repository = (*MemoryRepository)(nil)
