package assessmentrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
)

// SQLiteRepository persists health tests in a local SQLite database.
type SQLiteRepository struct {
	db    *sql.DB
	users assessment.UserLookup
}

// NewSQLiteRepository wraps an opened database (see sqlitedb.Open).
func NewSQLiteRepository(db *sql.DB, users assessment.UserLookup) *SQLiteRepository {
	return &SQLiteRepository{db: db, users: users}
}

var sqliteInsert = fmt.Sprintf(`INSERT INTO health_tests (user_id, %s, depression_state, classifier, language,
	suggestion_en, suggestion_id, tips_en, tips_id, latitude, longitude, health_test_date)
	VALUES (%s)`, strings.Join(scoreColumns[:], ", "), strings.TrimSuffix(strings.Repeat("?, ", 23), ", "))

// Create inserts a record. The owner is checked first because SQLite only
// reports a generic constraint failure.
func (r *SQLiteRepository) Create(ctx context.Context, record assessment.Record) (assessment.Record, error) {
	ok, err := r.users.UserExists(ctx, record.UserID)
	if err != nil {
		return assessment.Record{}, err
	}
	if !ok {
		return assessment.Record{}, assessment.ErrUserNotFound
	}
	res, err := r.db.ExecContext(ctx, sqliteInsert, insertArgs(record)...)
	if err != nil {
		return assessment.Record{}, err
	}
	if record.ID, err = res.LastInsertId(); err != nil {
		return assessment.Record{}, err
	}
	return record, nil
}

// FindLatest returns the newest record for a user.
func (r *SQLiteRepository) FindLatest(ctx context.Context, userID int64) (assessment.Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+`
		FROM health_tests
		WHERE user_id = ?
		ORDER BY health_test_date DESC, id DESC
		LIMIT 1`, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.Record{}, false, nil
	}
	if err != nil {
		return assessment.Record{}, false, err
	}
	return rec, true, nil
}

// FindHistory returns a user's records, newest first.
func (r *SQLiteRepository) FindHistory(ctx context.Context, userID int64) ([]assessment.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+`
		FROM health_tests
		WHERE user_id = ?
		ORDER BY health_test_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assessment.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ assessment.Repository = (*SQLiteRepository)(nil)
