package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role constants define the available user roles in the system.
const (
	// RoleAdmin may trigger notifications and manage Telegram settings.
	RoleAdmin = "admin"
	// RoleViewer has read-only access.
	RoleViewer = "viewer"
	// RoleService is the worker's own identity; it may watch orders.
	RoleService = "service"
)

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Identity is the authenticated principal behind a session.
type Identity struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

// Privileged reports whether the identity may read orders. The zero
// Identity is never privileged.
func (id Identity) Privileged() bool {
	return id.Subject != "" && (id.Role == RoleAdmin || id.Role == RoleService)
}

// Expired reports whether the identity is past its expiry at now.
func (id Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a Tokens with the given secret and lifetime.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject with role.
func (t *Tokens) Issue(subject, role string) (string, Identity, error) {
	now := t.now()
	id := Identity{Subject: subject, Role: role, ExpiresAt: now.Add(t.ttl).Truncate(time.Second)}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, id, nil
}

// Verify parses a token and returns its identity.
func (t *Tokens) Verify(tokenString string) (Identity, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenString, &c, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.Role == "" {
		return Identity{}, fmt.Errorf("%w: missing sub or role claim", ErrInvalidToken)
	}
	return Identity{Subject: c.Subject, Role: c.Role, ExpiresAt: c.ExpiresAt.Time}, nil
}
