// Package auth implements the authentication/session trust boundary (C13):
// password hashing and verification, HS256 JWT bearer tokens, the
// signup/login/reset flows, rate-limit/lockout bookkeeping, and the
// short-lived cached ban check every protected request pays.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/pbkdf2"

	"thewire/internal/config"
	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
	"thewire/internal/model"
	"thewire/internal/search"
	"thewire/internal/snowflake"
)

var (
	ErrTokenInvalid   = errors.New("auth: token invalid")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrRateLimited    = errors.New("auth: rate limit exceeded")
	ErrAccountLocked  = errors.New("auth: account temporarily locked")
	ErrBanCheckFailed = errors.New("auth: ban check unavailable")
	ErrResetInvalid   = errors.New("auth: reset token invalid or expired")
)

// Claims mirrors spec §3's session shape: {sub, email, handle, iat, exp}.
type Claims struct {
	Sub    int64  `json:"sub"`
	Email  string `json:"email"`
	Handle string `json:"handle"`
	Iat    int64  `json:"iat"`
	Exp    int64  `json:"exp"`
}

// Service wires the coordinators and KV tier the trust boundary depends on.
type Service struct {
	store  kvstore.Store
	users  *coordinator.UserCoord
	search *search.Index
	ids    *snowflake.Node
	cfg    *config.Config
}

// NewService builds an auth Service.
func NewService(store kvstore.Store, users *coordinator.UserCoord, idx *search.Index, ids *snowflake.Node, cfg *config.Config) *Service {
	return &Service{store: store, users: users, search: idx, ids: ids, cfg: cfg}
}

// HashPassword derives a PBKDF2-SHA256 verifier from password and a fresh
// random salt, per spec §3's ≥100,000-iteration requirement.
func HashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, model.PBKDF2SaltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), saltBytes, model.PBKDF2Iterations, model.PBKDF2KeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(derived), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// VerifyPassword recomputes the PBKDF2 derivation over the stored salt and
// compares in constant time, so a failed match always costs the same
// iteration count regardless of where the mismatch occurred or operand
// length (spec §4.10's timing-safe comparison requirement).
func VerifyPassword(password, hash, salt string) bool {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	wantBytes, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	derived := pbkdf2.Key([]byte(password), saltBytes, model.PBKDF2Iterations, model.PBKDF2KeyLen, sha256.New)
	return subtle.ConstantTimeCompare(derived, wantBytes) == 1
}

// MintToken signs a bearer token carrying Claims as HS256 JWT claims.
// Expiry defaults to cfg.JWTExpiryHour hours from now (spec: 24h default).
func (s *Service) MintToken(userID int64, email, handle string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    userID,
		"email":  email,
		"handle": handle,
		"iat":    now.Unix(),
		"exp":    now.Add(time.Duration(s.cfg.JWTExpiryHour) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// VerifyToken checks the JWT signature and expiry and returns the embedded
// Claims. Logout is client-local (spec §4.10): there is no server blocklist,
// so a token remains valid for its full lifetime once minted.
func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}

	sub, ok := mapClaims["sub"].(float64)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	email, _ := mapClaims["email"].(string)
	handle, _ := mapClaims["handle"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return Claims{
		Sub:    int64(sub),
		Email:  email,
		Handle: handle,
		Iat:    int64(iat),
		Exp:    int64(exp),
	}, nil
}

// CheckBan consults the 60s-TTL ban cache (spec §3/§4.10). A cache miss
// re-reads the UserCoord and repopulates the cache; an unreachable KV tier
// fails closed (denies access) rather than assuming the user is clean.
func (s *Service) CheckBan(ctx context.Context, userID int64) (bool, error) {
	key := coordinator.BanStatusKey(userID)
	cached, err := s.store.Get(ctx, key)
	if err == nil {
		return cached == "banned", nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return false, fmt.Errorf("%w: %v", ErrBanCheckFailed, err)
	}

	banned, err := s.users.IsBanned(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBanCheckFailed, err)
	}
	status := "active"
	if banned {
		status = "banned"
	}
	_ = s.store.SetTTL(ctx, key, status, coordinator.BanCacheTTL)
	return banned, nil
}
