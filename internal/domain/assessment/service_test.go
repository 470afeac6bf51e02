package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/mindcheck/pkg/errors"
)

type stubRepo struct {
	mu      sync.Mutex
	users   map[int64]bool
	records []Record
	err     error
	ctxErr  error
}

func newStubRepo(users ...int64) *stubRepo {
	r := &stubRepo{users: map[int64]bool{}}
	for _, u := range users {
		r.users[u] = true
	}
	return r
}

func (r *stubRepo) Create(ctx context.Context, record Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxErr = ctx.Err()
	if r.err != nil {
		return Record{}, r.err
	}
	if !r.users[record.UserID] {
		return Record{}, ErrUserNotFound
	}
	record.ID = int64(len(r.records) + 1)
	r.records = append(r.records, record)
	return record, nil
}

func (r *stubRepo) FindLatest(ctx context.Context, userID int64) (Record, bool, error) {
	history, err := r.FindHistory(ctx, userID)
	if err != nil || len(history) == 0 {
		return Record{}, false, err
	}
	return history[0], true, nil
}

func (r *stubRepo) FindHistory(_ context.Context, userID int64) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *stubRepo) UserExists(_ context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID], nil
}

func newTestService(classifier Classifier, repo *stubRepo, gen TextGenerator) *service {
	svc := NewService(Config{StorageTimeout: time.Second}, classifier, newGuidance(gen, time.Second), repo, repo, discardLogger()).(*service)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

// mostlyHealthy is all "Not at all" except suicidalIdeation and panicAttacks
// answered "Never"; the total is 62.
func mostlyHealthy(userID string) map[string]json.RawMessage {
	raw := rawScores("6")
	raw["suicidalIdeation"] = json.RawMessage("1")
	raw["panicAttacks"] = json.RawMessage("1")
	raw["userId"] = json.RawMessage(userID)
	return raw
}

func TestAssessStrategyIndependence(t *testing.T) {
	ruleRepo := newStubRepo(7)
	resp, err := newTestService(NewRuleBasedClassifier(), ruleRepo, nil).Assess(context.Background(), 7, mostlyHealthy("7"))
	require.NoError(t, err)
	require.Equal(t, SeverityNone, resp.Data.DepressionState)
	require.Equal(t, StrategyRule, ruleRepo.records[0].Classifier)

	model := NewModelClassifier(StaticModelHandle(stubPredictor{out: []float32{0.01, 0.01, 0.01, 0.97}}), DefaultFeatureStats(), ModelClassifierOptions{}, discardLogger())
	modelRepo := newStubRepo(7)
	resp, err = newTestService(model, modelRepo, nil).Assess(context.Background(), 7, mostlyHealthy("7"))
	require.NoError(t, err)
	require.Equal(t, SeveritySevere, resp.Data.DepressionState)
	require.Equal(t, StrategyModel, modelRepo.records[0].Classifier)
	require.Equal(t, ruleRepo.records[0].Scores, modelRepo.records[0].Scores)
}

func TestAssessPersistsRecordWithGuidance(t *testing.T) {
	repo := newStubRepo(3)
	gen := &stubGenerator{text: validBundleJSON}
	raw := mostlyHealthy("3")
	raw["language"] = json.RawMessage(`"id"`)

	resp, err := newTestService(NewRuleBasedClassifier(), repo, gen).Assess(context.Background(), 3, raw)
	require.NoError(t, err)
	require.Equal(t, MessageRecorded, resp.Message)
	require.Equal(t, int64(1), resp.Data.ID)
	require.Equal(t, int64(3), resp.Data.UserID)
	require.Equal(t, LanguageIndonesian, resp.Data.Language)
	require.Equal(t, "Bicaralah dengan orang yang Anda percaya.", resp.Data.Suggestion.ID)
	require.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), resp.Data.HealthTestDate)
	require.Len(t, repo.records, 1)
}

func TestAssessIgnoresCallerCancellation(t *testing.T) {
	repo := newStubRepo(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(NewRuleBasedClassifier(), repo, nil).Assess(ctx, 3, mostlyHealthy("3"))
	require.NoError(t, err)
	require.NoError(t, repo.ctxErr)
	require.Len(t, repo.records, 1)
}

func TestAssessErrors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		raw := mostlyHealthy("3")
		raw["fatigue"] = json.RawMessage("0")
		_, err := newTestService(NewRuleBasedClassifier(), newStubRepo(3), nil).Assess(context.Background(), 3, raw)
		require.True(t, apperrors.IsCode(err, CodeInvalidInput))
		require.Equal(t, "fatigue", FieldErrors(err)[0].Field)
	})

	t.Run("identity mismatch", func(t *testing.T) {
		_, err := newTestService(NewRuleBasedClassifier(), newStubRepo(3, 4), nil).Assess(context.Background(), 4, mostlyHealthy("3"))
		require.True(t, apperrors.IsCode(err, CodeForbidden))
	})

	t.Run("model unavailable", func(t *testing.T) {
		handle := NewModelHandle(func(context.Context) (Predictor, error) { return nil, errors.New("no onnx runtime") }, 0, discardLogger())
		model := NewModelClassifier(handle, DefaultFeatureStats(), ModelClassifierOptions{}, discardLogger())
		repo := newStubRepo(3)
		_, err := newTestService(model, repo, nil).Assess(context.Background(), 3, mostlyHealthy("3"))
		require.True(t, apperrors.IsCode(err, CodeModelUnavailable))
		var unavailable *ModelUnavailableError
		require.ErrorAs(t, err, &unavailable)
		require.Empty(t, repo.records)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := newTestService(NewRuleBasedClassifier(), newStubRepo(), nil).Assess(context.Background(), 3, mostlyHealthy("3"))
		require.True(t, apperrors.IsCode(err, CodePersistenceFailed))
		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		require.ErrorIs(t, err, ErrUserNotFound)
		require.Equal(t, "Invalid userId. User does not exist.", apperrors.MessageOf(err))
	})

	t.Run("store failure", func(t *testing.T) {
		repo := newStubRepo(3)
		repo.err = errors.New("connection reset")
		_, err := newTestService(NewRuleBasedClassifier(), repo, nil).Assess(context.Background(), 3, mostlyHealthy("3"))
		require.True(t, apperrors.IsCode(err, CodePersistenceFailed))
		require.Equal(t, messagePersistFailed, apperrors.MessageOf(err))
	})
}

func TestHistoryAndLatest(t *testing.T) {
	repo := newStubRepo(5)
	svc := newTestService(NewRuleBasedClassifier(), repo, nil)

	history, err := svc.History(context.Background(), 5, "5")
	require.NoError(t, err)
	require.Equal(t, MessageHistoryEmpty, history.Message)
	require.NotNil(t, history.Data)
	require.Empty(t, history.Data)

	_, err = svc.Latest(context.Background(), 5, "5")
	require.True(t, apperrors.IsCode(err, CodeHistoryNotFound))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return at }
		_, err := svc.Assess(context.Background(), 5, mostlyHealthy("5"))
		require.NoError(t, err)
	}

	history, err = svc.History(context.Background(), 5, "5")
	require.NoError(t, err)
	require.Equal(t, MessageHistoryFound, history.Message)
	require.Len(t, history.Data, 3)
	require.Equal(t, int64(3), history.Data[0].ID)
	require.Equal(t, int64(1), history.Data[2].ID)

	latest, err := svc.Latest(context.Background(), 5, "5")
	require.NoError(t, err)
	require.Equal(t, int64(3), latest.Data.ID)
}

func TestHistoryAuthorization(t *testing.T) {
	svc := newTestService(NewRuleBasedClassifier(), newStubRepo(5), nil)

	_, err := svc.History(context.Background(), 5, "abc")
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))

	_, err = svc.History(context.Background(), 6, "5")
	require.True(t, apperrors.IsCode(err, CodeForbidden))

	_, err = svc.Latest(context.Background(), 9, "9")
	require.True(t, apperrors.IsCode(err, CodeUserNotFound))
}
