package auth

import (
	"context"
	"fmt"
	"time"

	"thewire/internal/coordinator"
	"thewire/internal/model"
)

// SignupResult is what Signup returns on success.
type SignupResult struct {
	User  *model.User
	Token string
}

// Signup validates the request, atomically reserves the handle and email
// namespaces, hashes the password, initializes the user's UserCoord (which
// performs the self-follow invariant), indexes the handle/display-name for
// search, and mints a bearer token.
//
// The handle/email uniqueness check-and-set is a true atomic reservation via
// kvstore.SetNX (spec §4.10): whichever concurrent signup calls SetNX first
// wins outright, the loser's failed reservation is rolled back immediately,
// and no half-initialized user record is left behind.
func (s *Service) Signup(ctx context.Context, handleIn, emailIn, password, displayName string) (*SignupResult, error) {
	handle, err := ValidateHandle(handleIn)
	if err != nil {
		return nil, err
	}
	email, err := ValidateEmail(emailIn)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	id := s.ids.NextID()

	handleReserved, err := coordinator.ReserveHandle(ctx, s.store, handle, id)
	if err != nil {
		return nil, fmt.Errorf("reserve handle: %w", err)
	}
	if !handleReserved {
		return nil, model.ErrHandleTaken
	}

	emailReserved, err := coordinator.ReserveEmail(ctx, s.store, email, id)
	if err != nil {
		_ = coordinator.ReleaseHandle(ctx, s.store, handle)
		return nil, fmt.Errorf("reserve email: %w", err)
	}
	if !emailReserved {
		_ = coordinator.ReleaseHandle(ctx, s.store, handle)
		return nil, model.ErrEmailTaken
	}

	hash, salt, err := HashPassword(password)
	if err != nil {
		_ = coordinator.ReleaseHandle(ctx, s.store, handle)
		_ = coordinator.ReleaseEmail(ctx, s.store, email)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := model.Profile{
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	}
	if handle == s.cfg.InitialAdminHandle {
		profile.IsAdmin = true
	}
	settings := model.Settings{EmailNotifications: true}

	if err := s.users.Initialize(ctx, id, handle, email, hash, salt, profile, settings); err != nil {
		_ = coordinator.ReleaseHandle(ctx, s.store, handle)
		_ = coordinator.ReleaseEmail(ctx, s.store, email)
		return nil, fmt.Errorf("initialize user: %w", err)
	}

	if s.search != nil {
		if err := s.search.IndexUser(ctx, id, handle, displayName); err != nil {
			return nil, fmt.Errorf("index user: %w", err)
		}
	}

	token, err := s.MintToken(id, email, handle)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	user, err := s.users.ToUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load new user: %w", err)
	}

	return &SignupResult{User: user, Token: token}, nil
}
