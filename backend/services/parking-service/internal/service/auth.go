package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/auth"
	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/password"
	"parkcard/backend/services/parking-service/internal/repository"
)

// AuthService issues tokens for users.
type AuthService struct {
	store  Store
	hasher password.Hasher
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(deps Deps) *AuthService {
	deps = deps.withDefaults()
	return &AuthService{
		store:  deps.Store,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
		logger: deps.Logger,
	}
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login authenticates any user.
func (s *AuthService) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	user, err := s.authenticate(ctx, email, pass)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// AdminLogin authenticates a user holding the admin role.
func (s *AuthService) AdminLogin(ctx context.Context, email, pass string) (*LoginResult, error) {
	user, err := s.authenticate(ctx, email, pass)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		s.logger.Warn("non-admin attempted admin login", zap.String("user_id", user.UserID))
		return nil, ErrForbidden
	}
	return s.issue(user)
}

func (s *AuthService) authenticate(ctx context.Context, email, pass string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.Reader().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, translate("login", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, pass); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*LoginResult, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, &SystemError{Op: "issue_token", Err: err}
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}
