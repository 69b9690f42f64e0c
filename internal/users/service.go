package users

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Store is the persistence port the service depends on.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Service authenticates users and issues bearer tokens.
type Service struct {
	store  Store
	tokens *TokenCodec
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, tokens *TokenCodec, logger *slog.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: logger, now: time.Now}
}

// Login verifies credentials and returns the user and a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		// Same error for unknown user and bad password.
		return nil, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	s.logger.Info("user login", slog.String("username", username))
	return user, s.tokens.Issue(user.ID, s.now()), nil
}

// Resolve verifies a bearer token and loads the active user it names.
func (s *Service) Resolve(ctx context.Context, token string) (*User, error) {
	id, err := s.tokens.Verify(token, s.now())
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("users: resolve token: %w", err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
