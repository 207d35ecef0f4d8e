package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
)

// RequestReset issues a single-use, 15-minute reset token for the account
// matching handle+email, storing it under reset:{userId} (spec §3/§4.10). It
// is enumeration-safe: whether or not the handle/email pair resolves to a
// real account, the call succeeds and returns no signal either way — the
// token (if any) is delivered out of band by a collaborator outside this
// component's scope, never returned here.
func (s *Service) RequestReset(ctx context.Context, handleIn, emailIn string) error {
	handle, err := ValidateHandle(handleIn)
	if err != nil {
		return nil // enumeration-safe: invalid input looks identical to a miss.
	}
	email, err := ValidateEmail(emailIn)
	if err != nil {
		return nil
	}

	id, err := coordinator.LookupHandle(ctx, s.store, handle)
	if err != nil {
		return nil
	}
	user, err := s.users.ToUser(ctx, id)
	if err != nil || !strings.EqualFold(user.Email, email) {
		return nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	if err := s.store.SetTTL(ctx, coordinator.ResetTokenKey(id), token, coordinator.ResetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return nil
}

// ConfirmReset validates the reset token against the account resolved by
// handle+email and, on match, overwrites the password verifier and consumes
// the token (single-use). Like RequestReset, failure paths are
// indistinguishable from each other to the caller.
func (s *Service) ConfirmReset(ctx context.Context, handleIn, emailIn, token, newPassword string) error {
	handle, err := ValidateHandle(handleIn)
	if err != nil {
		return ErrResetInvalid
	}
	email, err := ValidateEmail(emailIn)
	if err != nil {
		return ErrResetInvalid
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	id, err := coordinator.LookupHandle(ctx, s.store, handle)
	if err != nil {
		return ErrResetInvalid
	}
	user, err := s.users.ToUser(ctx, id)
	if err != nil || !strings.EqualFold(user.Email, email) {
		return ErrResetInvalid
	}

	stored, err := s.store.Get(ctx, coordinator.ResetTokenKey(id))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return ErrResetInvalid
		}
		return fmt.Errorf("load reset token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrResetInvalid
	}

	hash, salt, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.users.SetPassword(ctx, id, hash, salt); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return s.store.Delete(ctx, coordinator.ResetTokenKey(id))
}
