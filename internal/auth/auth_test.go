package auth

import (
	"context"
	"testing"

	"thewire/internal/config"
	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
	"thewire/internal/model"
	"thewire/internal/search"
	"thewire/internal/snowflake"
)

func newTestService(t *testing.T) (*Service, *coordinator.UserCoord) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	users := coordinator.NewUserCoord(store, 0)
	idx := search.NewIndex(store)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:         "test-secret",
		JWTExpiryHour:     24,
		SignupsPerIPHour:  10,
		LoginsPerIPMinute: 5,
		LoginFailMax:      5,
	}
	return NewService(store, users, idx, node, cfg), users
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, salt, err := HashPassword("Sup3rSecret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword("Sup3rSecret", hash, salt) {
		t.Fatal("VerifyPassword should succeed for the correct password")
	}
	if VerifyPassword("wrong-password", hash, salt) {
		t.Fatal("VerifyPassword should fail for the wrong password")
	}
}

func TestMintAndVerifyToken(t *testing.T) {
	s, _ := newTestService(t)
	token, err := s.MintToken(42, "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	claims, err := s.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Sub != 42 || claims.Handle != "alice" {
		t.Fatalf("claims = %+v, want sub=42 handle=alice", claims)
	}
}

func TestVerifyTokenRejectsTamperedSignature(t *testing.T) {
	s, _ := newTestService(t)
	token, _ := s.MintToken(1, "a@example.com", "a")
	tampered := token[:len(token)-1] + "x"
	if _, err := s.VerifyToken(tampered); err != ErrTokenInvalid {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestSignupRejectsDuplicateHandle(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.Signup(ctx, "alice", "alice@example.com", "Passw0rd", "Alice"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := s.Signup(ctx, "alice", "alice2@example.com", "Passw0rd", "Alice2")
	if err != model.ErrHandleTaken {
		t.Fatalf("err = %v, want ErrHandleTaken", err)
	}
}

func TestSignupRollsBackHandleOnEmailConflict(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.Signup(ctx, "bob", "shared@example.com", "Passw0rd", "Bob"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := s.Signup(ctx, "carol", "shared@example.com", "Passw0rd", "Carol")
	if err != model.ErrEmailTaken {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}

	// The handle "carol" must not have been left reserved by the rolled-back
	// signup attempt.
	if _, err := s.Signup(ctx, "carol", "carol@example.com", "Passw0rd", "Carol"); err != nil {
		t.Fatalf("carol should be free to claim after rollback: %v", err)
	}
}

func TestLoginSucceedsAndFailsUniformly(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, "dave", "dave@example.com", "Passw0rd", "Dave"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := s.Login(ctx, "dave", "wrong-password"); err != model.ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Login(ctx, "nobody", "whatever"); err != model.ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials for unknown handle", err)
	}

	result, err := s.Login(ctx, "dave", "Passw0rd")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.User.Handle != "dave" || result.Token == "" {
		t.Fatalf("unexpected login result: %+v", result)
	}
}

func TestAccountLockoutAfterRepeatedFailures(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, "erin", "erin@example.com", "Passw0rd", "Erin"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	for i := 0; i < s.cfg.LoginFailMax; i++ {
		if _, err := s.Login(ctx, "erin", "wrong"); err != model.ErrInvalidCredentials {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	if _, err := s.Login(ctx, "erin", "Passw0rd"); err != ErrAccountLocked {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	s, store := newTestServiceWithStore(t)
	ctx := context.Background()
	if _, err := s.Signup(ctx, "frank", "frank@example.com", "Passw0rd", "Frank"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := s.RequestReset(ctx, "frank", "frank@example.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}

	id, _ := coordinator.LookupHandle(ctx, store, "frank")
	token, err := store.Get(ctx, coordinator.ResetTokenKey(id))
	if err != nil {
		t.Fatalf("expected reset token to be stored: %v", err)
	}

	if err := s.ConfirmReset(ctx, "frank", "frank@example.com", token, "NewPassw0rd"); err != nil {
		t.Fatalf("ConfirmReset: %v", err)
	}

	if _, err := s.Login(ctx, "frank", "Passw0rd"); err != model.ErrInvalidCredentials {
		t.Fatalf("old password should no longer work, err = %v", err)
	}
	if _, err := s.Login(ctx, "frank", "NewPassw0rd"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	// Single-use: the same token must not work twice.
	if err := s.ConfirmReset(ctx, "frank", "frank@example.com", token, "AnotherPassw0rd"); err != ErrResetInvalid {
		t.Fatalf("err = %v, want ErrResetInvalid on reuse", err)
	}
}

func TestRequestResetIsEnumerationSafe(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if err := s.RequestReset(ctx, "nosuchuser", "nosuchuser@example.com"); err != nil {
		t.Fatalf("RequestReset for unknown account should not error, got %v", err)
	}
}

func TestCheckBanReportsNotBannedForFreshUser(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	res, err := s.Signup(ctx, "gina", "gina@example.com", "Passw0rd", "Gina")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	// A healthy store with no cached entry should fall back to the
	// UserCoord read and report not-banned.
	banned, err := s.CheckBan(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("CheckBan: %v", err)
	}
	if banned {
		t.Fatal("freshly signed-up user should not be banned")
	}
}

func newTestServiceWithStore(t *testing.T) (*Service, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	users := coordinator.NewUserCoord(store, 0)
	idx := search.NewIndex(store)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:         "test-secret",
		JWTExpiryHour:     24,
		SignupsPerIPHour:  10,
		LoginsPerIPMinute: 5,
		LoginFailMax:      5,
	}
	return NewService(store, users, idx, node, cfg), store
}
