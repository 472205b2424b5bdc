package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sumire/taskboard/internal/domain"
)

type fakeUserStore struct {
	nextID int64
	users  map[int64]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: map[int64]domain.User{}}
}

func (s *fakeUserStore) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeUserStore) Create(_ context.Context, user domain.User) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, domain.ErrConflict
		}
	}
	user.ID = s.nextID
	s.users[user.ID] = user
	s.nextID++
	return &user, nil
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, "alice@example.com", "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("register should issue both tokens")
	}
	if user.PasswordHash == "correct horse battery" {
		t.Fatal("password must not be stored in the clear")
	}

	logged, _, err := svc.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Errorf("logged in as %d, want %d", logged.ID, user.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice@example.com", "alice", "correct horse battery"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, _, err := svc.Login(ctx, "alice@example.com", "wrong")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Login error = %v, want ErrUnauthorized", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Login error = %v, want ErrUnauthorized", err)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice@example.com", "alice", "correct horse battery"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, _, err := svc.Register(ctx, "alice@example.com", "alice2", "another password")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Register error = %v, want ErrConflict", err)
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, "alice@example.com", "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	userID, err := svc.ValidateToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != user.ID {
		t.Errorf("userID = %d, want %d", userID, user.ID)
	}

	// A refresh token is not an access token.
	if _, err := svc.ValidateToken(tokens.RefreshToken); err == nil {
		t.Error("refresh token should not validate as access token")
	}
}

func TestRefreshAccessToken(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, "alice@example.com", "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	fresh, err := svc.RefreshAccessToken(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	userID, err := svc.ValidateToken(fresh.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken on refreshed token: %v", err)
	}
	if userID != user.ID {
		t.Errorf("userID = %d, want %d", userID, user.ID)
	}

	if _, err := svc.RefreshAccessToken(tokens.AccessToken); err == nil {
		t.Error("access token should not be usable as refresh token")
	}
}
