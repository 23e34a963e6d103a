package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/repository"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.CreateUser(ctx, CreateUserInput{
		UserID: "U1", Name: "An", Email: " An@Example.com ", Password: "pw",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "an@example.com" || user.Role != models.RoleUser || user.PasswordHash == "pw" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = env.users.CreateUser(ctx, CreateUserInput{UserID: "U2", Name: "Dup", Email: "an@example.com", Password: "pw"})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier for email, got %v", err)
	}

	bad := []CreateUserInput{
		{Name: "x", Email: "x@example.com", Password: "pw"},
		{UserID: "U3", Name: "x", Email: "not-an-email", Password: "pw"},
		{UserID: "U3", Name: "x", Email: "x@example.com", Password: "pw", Role: "root"},
	}
	for i, in := range bad {
		if _, err := env.users.CreateUser(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestGetListAndDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := env.users.CreateUser(ctx, CreateUserInput{
			UserID: fmt.Sprintf("U%d", i), Name: "n", Email: fmt.Sprintf("u%d@example.com", i), Password: "pw",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	users, err := env.users.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("list: %d %v", len(users), err)
	}

	if _, err := env.users.GetUser(ctx, "U1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := env.users.GetUser(ctx, "U9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := env.users.DeleteUser(ctx, "U2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.users.GetUser(ctx, "U2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted user to be gone, got %v", err)
	}
	if err := env.users.DeleteUser(ctx, "U2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestDeleteUserWithCardsIsRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.cards.RegisterCard(ctx, RegisterCardInput{CardID: "C1", OwnerName: "Owner", LicensePlate: "P"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.users.DeleteUser(ctx, res.User.UserID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := env.users.GetUser(ctx, res.User.UserID); err != nil {
		t.Fatalf("user should still exist: %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.users.EnsureAdmin(ctx, "", "admin@parking.system", "admin123")
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	created, err = env.users.EnsureAdmin(ctx, "Other", "ADMIN@parking.system", "changed")
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}

	admin, err := env.mem.Reader().GetUserByEmail(ctx, "admin@parking.system")
	if err != nil {
		t.Fatalf("lookup admin: %v", err)
	}
	if !admin.IsAdmin() || admin.Name != "Administrator" {
		t.Fatalf("unexpected admin %+v", admin)
	}
	if _, err := env.users.EnsureAdmin(ctx, "", "", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoginAndAdminLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.users.CreateUser(ctx, CreateUserInput{UserID: "U1", Name: "User", Email: "user@example.com", Password: "pw"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := env.users.CreateUser(ctx, CreateUserInput{UserID: "A1", Name: "Admin", Email: "admin@example.com", Password: "root", Role: "ADMIN"}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	res, err := env.auth.Login(ctx, "USER@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := env.tokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if identity.UserID != "U1" || identity.Email != "user@example.com" || identity.IsAdmin() {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if res.ExpiresAt.IsZero() {
		t.Fatalf("unexpected expiry %s", res.ExpiresAt)
	}

	for _, tc := range []struct{ email, pass string }{
		{"user@example.com", "wrong"},
		{"ghost@example.com", "pw"},
		{"", ""},
	} {
		if _, err := env.auth.Login(ctx, tc.email, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login(%q): expected ErrInvalidCredentials, got %v", tc.email, err)
		}
	}

	if _, err := env.auth.AdminLogin(ctx, "user@example.com", "pw"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	if _, err := env.auth.AdminLogin(ctx, "user@example.com", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials before role check, got %v", err)
	}
	adminRes, err := env.auth.AdminLogin(ctx, "admin@example.com", "root")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if !adminRes.User.IsAdmin() {
		t.Fatalf("expected admin user")
	}
}

func TestErrorKindAndTranslate(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{notFound("card", "x"), "not_found"},
		{&InsufficientBalanceError{}, "insufficient_balance"},
		{&SessionActiveError{}, "session_already_active"},
		{&PlateMismatchError{}, "license_plate_mismatch"},
		{ErrCardInactive, "card_inactive"},
		{context.DeadlineExceeded, "timeout"},
		{&SystemError{Op: "x", Err: errors.New("boom")}, "system_failure"},
		{errors.New("anything"), "system_failure"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}

	if err := translate("op", ErrNoActiveSession); err != ErrNoActiveSession {
		t.Fatalf("domain errors should pass through, got %v", err)
	}
	if err := translate("op", repository.ErrDuplicate); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
	cause := errors.New("connection reset")
	err := translate("op", cause)
	if !errors.Is(err, ErrSystemFailure) || !errors.Is(err, cause) {
		t.Fatalf("expected system failure wrapping cause, got %v", err)
	}
	if translate("op", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
