package auth

import (
	"context"
	"fmt"
	"time"

	"thewire/internal/coordinator"
)

// checkWindow implements the sliding-window-by-truncation counter design
// note (§9): a fixed-size bucket keyed by {bucket, key, window-start},
// incremented in the KV tier with a TTL equal to the window size. The first
// increment in a window sets the TTL; later increments within the same
// window reuse it.
func (s *Service) checkWindow(ctx context.Context, bucket, key string, window time.Duration, max int) error {
	bucketKey := coordinator.RateLimitKey(bucket, fmt.Sprintf("%s:%d", key, time.Now().Truncate(window).Unix()))
	count, err := s.store.Incr(ctx, bucketKey, 1)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if count == 1 {
		_ = s.store.Expire(ctx, bucketKey, window)
	}
	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

// CheckSignupRate enforces spec §4.10: ≤10 signups per IP per hour.
func (s *Service) CheckSignupRate(ctx context.Context, ip string) error {
	return s.checkWindow(ctx, "signup-ip", ip, time.Hour, s.cfg.SignupsPerIPHour)
}

// CheckLoginRate enforces spec §4.10: 5 login attempts per IP per minute.
func (s *Service) CheckLoginRate(ctx context.Context, ip string) error {
	return s.checkWindow(ctx, "login-ip", ip, time.Minute, s.cfg.LoginsPerIPMinute)
}

const lockoutWindow = 15 * time.Minute

// RecordLoginFailure bumps the per-account failure counter for the lockout
// window; once it reaches LoginFailMax, CheckAccountLockout rejects further
// attempts against that account for the remainder of the window.
func (s *Service) RecordLoginFailure(ctx context.Context, userID int64) error {
	key := coordinator.RateLimitKey("login-fail", fmt.Sprintf("%d", userID))
	count, err := s.store.Incr(ctx, key, 1)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	if count == 1 {
		_ = s.store.Expire(ctx, key, lockoutWindow)
	}
	return nil
}

// ClearLoginFailures resets the lockout counter on a successful login.
func (s *Service) ClearLoginFailures(ctx context.Context, userID int64) error {
	return s.store.Delete(ctx, coordinator.RateLimitKey("login-fail", fmt.Sprintf("%d", userID)))
}

// CheckAccountLockout rejects login if 5 failures have accumulated against
// userID within the last 15 minutes (spec §4.10's account-lockout window).
func (s *Service) CheckAccountLockout(ctx context.Context, userID int64) error {
	key := coordinator.RateLimitKey("login-fail", fmt.Sprintf("%d", userID))
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return nil // no recorded failures, or KV miss — allow the attempt.
	}
	var count int
	fmt.Sscanf(raw, "%d", &count)
	if count >= s.cfg.LoginFailMax {
		return ErrAccountLocked
	}
	return nil
}
