package assessmentrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
)

const pgForeignKeyViolation = "23503"

// PostgresRepository persists health tests in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var pgInsert = func() string {
	placeholders := make([]string, 0, 23)
	for i := 1; i <= 23; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
	}
	return fmt.Sprintf(`INSERT INTO health_tests (user_id, %s, depression_state, classifier, language,
		suggestion_en, suggestion_id, tips_en, tips_id, latitude, longitude, health_test_date)
		VALUES (%s) RETURNING id`, strings.Join(scoreColumns[:], ", "), strings.Join(placeholders, ", "))
}()

// Create inserts a record. A missing owner surfaces as ErrUserNotFound.
func (r *PostgresRepository) Create(ctx context.Context, record assessment.Record) (assessment.Record, error) {
	if err := r.pool.QueryRow(ctx, pgInsert, insertArgs(record)...).Scan(&record.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return assessment.Record{}, assessment.ErrUserNotFound
		}
		return assessment.Record{}, err
	}
	return record, nil
}

// FindLatest returns the newest record for a user.
func (r *PostgresRepository) FindLatest(ctx context.Context, userID int64) (assessment.Record, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+`
		FROM health_tests
		WHERE user_id = $1
		ORDER BY health_test_date DESC, id DESC
		LIMIT 1`, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return assessment.Record{}, false, nil
	}
	if err != nil {
		return assessment.Record{}, false, err
	}
	return rec, true, nil
}

// FindHistory returns a user's records, newest first.
func (r *PostgresRepository) FindHistory(ctx context.Context, userID int64) ([]assessment.Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`
		FROM health_tests
		WHERE user_id = $1
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

var _ assessment.Repository = (*PostgresRepository)(nil)
