package auth

import (
	"regexp"
	"strings"

	"thewire/internal/model"
)

var (
	handleRe = regexp.MustCompile(`^[a-z0-9_]+$`)
	emailRe  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateHandle enforces spec §3: 3–15 chars, [a-z0-9_], case-folded, not
// reserved, not starting with '_'.
func ValidateHandle(handle string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(handle))
	if len(h) < model.HandleMinLen || len(h) > model.HandleMaxLen {
		return "", model.ErrInvalidHandle
	}
	if !handleRe.MatchString(h) {
		return "", model.ErrInvalidHandle
	}
	if strings.HasPrefix(h, "_") {
		return "", model.ErrInvalidHandle
	}
	if model.IsReservedHandle(h) {
		return "", model.ErrInvalidHandle
	}
	return h, nil
}

// ValidateEmail enforces spec §3/§4.10: RFC-like regex, ≤254 chars,
// case-folded.
func ValidateEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if len(e) == 0 || len(e) > model.EmailMaxLen {
		return "", model.ErrInvalidEmail
	}
	if !emailRe.MatchString(e) {
		return "", model.ErrInvalidEmail
	}
	return e, nil
}

// ValidatePassword enforces spec §4.10: 8–128 chars, must contain upper,
// lower, and digit.
func ValidatePassword(password string) error {
	if len(password) < model.PasswordMinLen || len(password) > model.PasswordMaxLen {
		return model.ErrInvalidPassword
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return model.ErrInvalidPassword
	}
	return nil
}
