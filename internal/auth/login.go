package auth

import (
	"context"
	"fmt"

	"thewire/internal/coordinator"
	"thewire/internal/model"
)

// LoginResult is what Login returns on success.
type LoginResult struct {
	User  *model.User
	Token string
}

// Login authenticates handle+password, enforcing the account-lockout window
// (5 failures within 15 minutes) and uniform "Invalid credentials" errors so
// a caller can never distinguish "no such handle" from "wrong password".
func (s *Service) Login(ctx context.Context, handleIn, password string) (*LoginResult, error) {
	handle, err := ValidateHandle(handleIn)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	id, err := coordinator.LookupHandle(ctx, s.store, handle)
	if err != nil {
		// Still run a verification so the response timing doesn't leak
		// "handle not found" vs. "wrong password".
		VerifyPassword(password, "", "")
		return nil, model.ErrInvalidCredentials
	}

	if err := s.CheckAccountLockout(ctx, id); err != nil {
		return nil, err
	}

	user, err := s.users.ToUser(ctx, id)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.PasswordHash, user.PasswordSalt) {
		_ = s.RecordLoginFailure(ctx, id)
		return nil, model.ErrInvalidCredentials
	}

	if user.Profile.IsBanned {
		return nil, model.ErrUserBanned
	}

	_ = s.ClearLoginFailures(ctx, id)
	if err := s.users.RecordLogin(ctx, id); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	token, err := s.MintToken(id, user.Email, user.Handle)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	return &LoginResult{User: user, Token: token}, nil
}
