// Package auth guards the administrative endpoints: HS256 bearer tokens for
// operators and bcrypt-hashed API keys for upload automation. There are no
// user accounts or sessions; the token secret is shared operator
// configuration.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "fluxmap/pkg/domainerrors"
)

const issuer = "fluxmap"

// RoleAdmin is the only role the system recognises.
const RoleAdmin = "admin"

// Claims are the access-token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and validates admin tokens with a shared HS256 secret.
type Manager struct {
	signingKey []byte
	now        func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock overrides the time source for deterministic tests.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a token manager. The secret must be non-empty; callers
// gate admin endpoints off entirely when no secret is configured.
func NewManager(secret string, opts ...ManagerOption) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	m := &Manager{signingKey: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Generate mints a token for the subject with the given role and lifetime.
func (m *Manager) Generate(subject, role string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate parses and verifies a token, returning its claims. All failure
// modes map to an unauthorized domain error so the transport layer never
// leaks parser details.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
