package users

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/velora-oms/velora-oms/internal/shared"
)

type memoryStore struct {
	users map[uuid.UUID]*User
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func newTestService(t *testing.T, user *User) *Service {
	t.Helper()
	store := &memoryStore{users: map[uuid.UUID]*User{}}
	if user != nil {
		store.users[user.ID] = user
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, NewTokenCodec("test-secret", time.Hour), logger)
}

func testUser(t *testing.T, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &User{
		ID:           uuid.New(),
		Username:     "asha",
		FullName:     "Asha Nair",
		Role:         "sales_rep",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	user := testUser(t, "velora123")
	svc := newTestService(t, user)

	got, token, err := svc.Login(context.Background(), "asha", "velora123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	resolved, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, user.ID, resolved.ID)
}

func TestLoginRejectsBadPasswordAndUnknownUserAlike(t *testing.T) {
	svc := newTestService(t, testUser(t, "velora123"))

	_, _, err := svc.Login(context.Background(), "asha", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody", "velora123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := testUser(t, "velora123")
	user.IsActive = false
	svc := newTestService(t, user)

	_, _, err := svc.Login(context.Background(), "asha", "velora123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenExpiryAndTampering(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	id := uuid.New()
	issued := time.Now()

	token := codec.Issue(id, issued)
	got, err := codec.Verify(token, issued.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = codec.Verify(token, issued.Add(2*time.Hour))
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = codec.Verify(token+"0", issued)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	other := NewTokenCodec("different-secret", time.Hour)
	_, err = other.Verify(token, issued)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
