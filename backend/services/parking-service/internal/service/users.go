package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/password"
	"parkcard/backend/services/parking-service/internal/repository"
)

// UserService manages user accounts.
type UserService struct {
	store  Store
	hasher password.Hasher
	notify *notifier
	logger *zap.Logger
}

// NewUserService builds UserService.
func NewUserService(deps Deps) *UserService {
	deps = deps.withDefaults()
	return &UserService{
		store:  deps.Store,
		hasher: deps.Hasher,
		notify: newNotifier(deps),
		logger: deps.Logger,
	}
}

// CreateUserInput describes a new account.
type CreateUserInput struct {
	UserID   string
	Name     string
	Email    string
	Password string
	Role     string
}

// CreateUser registers a user. Role defaults to user.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (user *models.User, err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("create_user", started, err)
		s.notify.logFailure("create_user", err)
	}()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	if in.UserID == "" || in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, invalidInput("user_id, name, email and password are required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, invalidInput("email is malformed")
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleAdmin:
	default:
		return nil, invalidInput(fmt.Sprintf("unknown role %q", in.Role))
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return nil, invalidInput("password must not exceed 72 bytes")
	}
	if err != nil {
		return nil, &SystemError{Op: "create_user", Err: err}
	}

	user = &models.User{
		UserID:       in.UserID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		return q.CreateUser(ctx, user)
	})
	if err = translate("create_user", err); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	return user, nil
}

// ListUsers returns every user, newest first.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Reader().ListUsers(ctx)
	if err != nil {
		return nil, translate("list_users", err)
	}
	return users, nil
}

// GetUser fetches a user by external id.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	user, err := s.store.Reader().GetUserByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user", userID)
	}
	if err != nil {
		return nil, translate("get_user", err)
	}
	return user, nil
}

// DeleteUser removes a user that owns no cards.
func (s *UserService) DeleteUser(ctx context.Context, userID string) (err error) {
	started := time.Now()
	defer func() {
		s.notify.observe("delete_user", started, err)
		s.notify.logFailure("delete_user", err)
	}()

	userID = strings.TrimSpace(userID)
	err = s.store.InTx(ctx, func(ctx context.Context, q repository.Querier) error {
		user, err := q.GetUserByUserID(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user", userID)
		}
		if err != nil {
			return err
		}
		cards, err := q.CountCardsByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if cards > 0 {
			return invalidInput(fmt.Sprintf("user still owns %d card(s)", cards))
		}
		return q.DeleteUser(ctx, user.ID)
	})
	if err = translate("delete_user", err); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", userID))
	return nil
}

// EnsureAdmin creates an admin account for email unless a user with that email
// already exists. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, pass string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" || pass == "" {
		return false, invalidInput("admin email and password are required")
	}
	if _, err := s.store.Reader().GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, translate("ensure_admin", err)
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	_, err := s.CreateUser(ctx, CreateUserInput{
		UserID:   models.NewUserID(),
		Name:     name,
		Email:    email,
		Password: pass,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, ErrDuplicateIdentifier) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
