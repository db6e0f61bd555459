package services

import (
	"context"
	"errors"
	"testing"

	"supportdesk/config"
	"supportdesk/repository"
)

func newTestAuthService(t *testing.T) (*AuthService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewAuthService(store, &config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenExpiry:   1,
		RefreshExpiry: 2,
	}), store
}

func TestRegisterCreatesAttendantProfile(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, 1, "alice@example.com", "alice", "hunter22", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Password == "hunter22" {
		t.Error("password stored in plaintext")
	}

	attendant, err := auth.AttendantForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("AttendantForUser: %v", err)
	}
	if attendant.TenantID != 1 || attendant.DisplayName != "alice" {
		t.Errorf("attendant profile: %+v", attendant)
	}
	if attendant.MaxConversations != 3 {
		t.Errorf("MaxConversations = %d, want default 3", attendant.MaxConversations)
	}
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, 1, "alice@example.com", "alice", "hunter22", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := auth.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidLogin) {
		t.Errorf("wrong password: err = %v, want ErrInvalidLogin", err)
	}
	if _, err := auth.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidLogin) {
		t.Errorf("unknown email: err = %v, want ErrInvalidLogin", err)
	}

	logged, err := auth.Login(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tokens, err := auth.GenerateTokens(logged)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}
	claims, err := auth.ValidateToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID || claims.TenantID != 1 {
		t.Errorf("claims: %+v", claims)
	}

	if _, err := auth.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token validated")
	}
}
