package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/mindcheck/pkg/errors"
)

func newTestService() (*service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(Config{
		Secret:          "test-secret",
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, repo, newTestLogger()).(*service)
	return svc, repo
}

func TestService_RegisterLoginAndRefresh(t *testing.T) {
	svc, _ := newTestService()

	view, err := svc.Register(context.Background(), RegisterRequest{
		Username: "dewi_s",
		Email:    "Dewi@Example.com",
		Password: "pass1234",
	})
	require.NoError(t, err)
	require.Equal(t, "dewi@example.com", view.Email)
	require.Equal(t, "dewi_s", view.Username)
	require.NotZero(t, view.ID)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "dewi@example.com", Password: "pass1234"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, view.ID, claims.UserID)
	require.Equal(t, view.Email, claims.Email)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	_, err = svc.ValidateToken(context.Background(), resp.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))

	refreshed, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, resp.Token, refreshed.Token)
	require.Equal(t, "dewi_s", refreshed.User.Username)

	profile, err := svc.Profile(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, view, profile)
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	cases := []RegisterRequest{
		{Username: "", Email: "a@example.com", Password: "pass1234"},
		{Username: "bad name", Email: "a@example.com", Password: "pass1234"},
		{Username: "ok", Email: "not-an-email", Password: "pass1234"},
		{Username: "ok", Email: "a@example.com", Password: "short"},
	}
	for _, req := range cases {
		_, err := svc.Register(context.Background(), req)
		require.True(t, apperrors.IsCode(err, CodeInvalidInput), "%+v", req)
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "one", Email: "user@example.com", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "two", Email: "user@example.com", Password: "pass12345"})
	require.True(t, apperrors.IsCode(err, CodeEmailExists))
}

func TestService_LoginWrongPassword(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "one", Email: "user@example.com", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "wrongpass"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "pass1234"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))
}

func TestService_ExpiredToken(t *testing.T) {
	svc, _ := newTestService()
	view, err := svc.Register(context.Background(), RegisterRequest{Username: "one", Email: "user@example.com", Password: "pass1234"})
	require.NoError(t, err)

	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.signToken(User{ID: view.ID, Email: view.Email}, tokenTypeAccess, time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(context.Background(), token)
	require.True(t, apperrors.IsCode(err, CodeInvalidToken))
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryRepo struct {
	users map[int64]User
	seq   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (m *memoryRepo) Create(_ context.Context, username, email, passwordHash string) (User, error) {
	m.seq++
	user := User{
		ID:           m.seq,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (User, bool, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (User, bool, error) {
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memoryRepo) UserExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.users[id]
	return ok, nil
}
