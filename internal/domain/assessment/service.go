package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/yanqian/mindcheck/pkg/errors"
)

// CodeForbidden is returned when a caller targets another user's data.
const CodeForbidden = "forbidden"

// Response messages.
const (
	MessageRecorded         = "Depression state predicted and recorded successfully."
	MessageHistoryFound     = "Test history retrieved successfully."
	MessageHistoryEmpty     = "No test history found for this user."
	MessageLatestFound      = "Latest test result retrieved successfully."
	messageUserNotFound     = "User not found."
	messagePersistFailed    = "Failed to record health test."
	messageRetrieveFailed   = "Failed to retrieve test history."
	messageModelUnavailable = "Classification model is unavailable."
)

// Service runs assessments and serves their history.
type Service interface {
	Assess(ctx context.Context, callerID int64, raw map[string]json.RawMessage) (Response, error)
	History(ctx context.Context, callerID int64, userID string) (HistoryResponse, error)
	Latest(ctx context.Context, callerID int64, userID string) (Response, error)
}

// Config holds service level tunables.
type Config struct {
	StorageTimeout time.Duration
}

type service struct {
	cfg        Config
	classifier Classifier
	guidance   *GuidanceGenerator
	repo       Repository
	users      UserLookup
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the assessment pipeline.
func NewService(cfg Config, classifier Classifier, guidance *GuidanceGenerator, repo Repository, users UserLookup, logger *slog.Logger) Service {
	return &service{
		cfg:        cfg,
		classifier: classifier,
		guidance:   guidance,
		repo:       repo,
		users:      users,
		logger:     logger.With("component", "assessment.service"),
		now:        time.Now,
	}
}

// Assess validates, classifies, attaches guidance and persists one
// questionnaire. The pipeline runs to completion even if the caller goes away.
func (s *service) Assess(ctx context.Context, callerID int64, raw map[string]json.RawMessage) (Response, error) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With("caller_id", callerID)
	log.Debug("pipeline stage", "stage", "received")

	input, err := ParseInput(raw)
	if err != nil {
		return Response{}, apperrors.Wrap(CodeInvalidInput, "invalid assessment input", err)
	}
	if input.UserID != callerID {
		return Response{}, apperrors.Wrap(CodeForbidden, "cannot submit an assessment for another user", nil)
	}
	log.Debug("pipeline stage", "stage", "validated")

	result, err := s.classifier.Classify(ctx, input.Scores)
	if err != nil {
		var unavailable *ModelUnavailableError
		if !errors.As(err, &unavailable) {
			err = &ModelUnavailableError{Err: err}
		}
		log.Error("classification failed", "error", err)
		return Response{}, apperrors.Wrap(CodeModelUnavailable, messageModelUnavailable, err)
	}
	log.Debug("pipeline stage", "stage", "classified", "state", int(result.State), "strategy", result.Strategy)

	bundle := s.guidance.Generate(ctx, GuidanceRequest{
		State:    result.State,
		Scores:   input.Scores,
		Language: input.Language,
		Geo:      input.Geo,
	})
	log.Debug("pipeline stage", "stage", "guidance_resolved")

	record := Record{
		UserID:     input.UserID,
		Scores:     input.Scores,
		State:      result.State,
		Classifier: result.Strategy,
		Language:   input.Language,
		Geo:        input.Geo,
		Guidance:   bundle,
		CreatedAt:  s.now().UTC(),
	}
	saved, err := s.persist(ctx, record)
	if err != nil {
		log.Error("persist assessment failed", "error", err)
		return Response{}, apperrors.Wrap(CodePersistenceFailed, persistMessage(err), err)
	}
	log.Debug("pipeline stage", "stage", "persisted", "record_id", saved.ID)

	log.Info("assessment recorded", "record_id", saved.ID, "state", int(saved.State), "strategy", saved.Classifier)
	return Response{Message: MessageRecorded, Data: saved.View()}, nil
}

func (s *service) persist(ctx context.Context, record Record) (Record, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	saved, err := s.repo.Create(ctx, record)
	if err != nil {
		return Record{}, &PersistenceError{Op: "create health test", Err: err}
	}
	return saved, nil
}

func persistMessage(err error) string {
	if errors.Is(err, ErrUserNotFound) {
		return "Invalid userId. User does not exist."
	}
	return messagePersistFailed
}

// History lists every record of a user, newest first.
func (s *service) History(ctx context.Context, callerID int64, userID string) (HistoryResponse, error) {
	id, err := s.authorizeOwner(ctx, callerID, userID)
	if err != nil {
		return HistoryResponse{}, err
	}
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	records, err := s.repo.FindHistory(ctx, id)
	if err != nil {
		s.logger.Error("load history failed", "user_id", id, "error", err)
		return HistoryResponse{}, apperrors.Wrap(CodePersistenceFailed, messageRetrieveFailed, &PersistenceError{Op: "find history", Err: err})
	}
	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		views = append(views, r.View())
	}
	if len(views) == 0 {
		return HistoryResponse{Message: MessageHistoryEmpty, Data: views}, nil
	}
	return HistoryResponse{Message: MessageHistoryFound, Data: views}, nil
}

// Latest returns the newest record of a user.
func (s *service) Latest(ctx context.Context, callerID int64, userID string) (Response, error) {
	id, err := s.authorizeOwner(ctx, callerID, userID)
	if err != nil {
		return Response{}, err
	}
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	record, ok, err := s.repo.FindLatest(ctx, id)
	if err != nil {
		s.logger.Error("load latest failed", "user_id", id, "error", err)
		return Response{}, apperrors.Wrap(CodePersistenceFailed, messageRetrieveFailed, &PersistenceError{Op: "find latest", Err: err})
	}
	if !ok {
		return Response{}, apperrors.Wrap(CodeHistoryNotFound, MessageHistoryEmpty, nil)
	}
	return Response{Message: MessageLatestFound, Data: record.View()}, nil
}

func (s *service) authorizeOwner(ctx context.Context, callerID int64, userID string) (int64, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return 0, apperrors.Wrap(CodeInvalidInput, "invalid user id", err)
	}
	if id != callerID {
		return 0, apperrors.Wrap(CodeForbidden, "cannot read another user's history", nil)
	}
	ctx, cancel := s.storageContext(ctx)
	defer cancel()
	exists, err := s.users.UserExists(ctx, id)
	if err != nil {
		return 0, apperrors.Wrap(CodePersistenceFailed, messageRetrieveFailed, &PersistenceError{Op: "lookup user", Err: err})
	}
	if !exists {
		return 0, apperrors.Wrap(CodeUserNotFound, messageUserNotFound, nil)
	}
	return id, nil
}

func (s *service) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StorageTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.StorageTimeout)
	}
	return context.WithCancel(ctx)
}
