package assessmentrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/infra/sqlitedb"
	"github.com/yanqian/mindcheck/internal/infra/userrepo"
)

func sampleRecord(userID int64, at time.Time, state assessment.SeverityState) assessment.Record {
	return assessment.Record{
		UserID:     userID,
		Scores:     assessment.Scores{6, 6, 6, 6, 6, 6, 1, 6, 6, 1, 6, 6},
		State:      state,
		Classifier: assessment.StrategyRule,
		Language:   assessment.LanguageIndonesian,
		Guidance:   assessment.FallbackGuidance(state, false),
		CreatedAt:  at,
	}
}

func exerciseRepository(t *testing.T, repo assessment.Repository, userID int64) {
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	_, found, err := repo.FindLatest(ctx, userID)
	require.NoError(t, err)
	require.False(t, found)

	first, err := repo.Create(ctx, sampleRecord(userID, base, assessment.SeverityNone))
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	withGeo := sampleRecord(userID, base.Add(time.Hour), assessment.SeveritySevere)
	withGeo.Geo = &assessment.GeoPoint{Latitude: -6.2, Longitude: 106.8}
	withGeo.Classifier = assessment.StrategyModel
	second, err := repo.Create(ctx, withGeo)
	require.NoError(t, err)

	history, err := repo.FindHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID)
	require.Equal(t, first.ID, history[1].ID)
	require.Equal(t, withGeo.Scores, history[0].Scores)
	require.Equal(t, assessment.StrategyModel, history[0].Classifier)
	require.NotNil(t, history[0].Geo)
	require.InDelta(t, 106.8, history[0].Geo.Longitude, 1e-9)
	require.Nil(t, history[1].Geo)
	require.Equal(t, assessment.FallbackGuidance(assessment.SeverityNone, false), history[1].Guidance)
	require.True(t, base.Equal(history[1].CreatedAt))

	latest, found, err := repo.FindLatest(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, assessment.SeveritySevere, latest.State)

	_, err = repo.Create(ctx, sampleRecord(userID+1000, base, assessment.SeverityMild))
	require.ErrorIs(t, err, assessment.ErrUserNotFound)

	other, err := repo.FindHistory(ctx, userID+1000)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestMemoryRepository(t *testing.T) {
	users := userrepo.NewMemoryRepository()
	user, err := users.Create(context.Background(), "rina", "rina@example.com", "hash")
	require.NoError(t, err)

	exerciseRepository(t, NewMemoryRepository(users), user.ID)
}

func TestSQLiteRepository(t *testing.T) {
	db, err := sqlitedb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := userrepo.NewSQLiteRepository(db)
	user, err := users.Create(context.Background(), "rina", "rina@example.com", "hash")
	require.NoError(t, err)

	exerciseRepository(t, NewSQLiteRepository(db, users), user.ID)
}
