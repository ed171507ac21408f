package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	authservice "perfumery-notify/internal/service/auth"
)

// User is one operator account.
type User struct {
	Name     string
	Password string
	Role     string
}

// StaticProvider authenticates operators against a fixed set of accounts,
// typically the admin and optional viewer from the environment.
type StaticProvider struct {
	users             []User
	minPasswordLength int
	weakPasswords     []string
}

// NewStaticProvider creates a provider. Accounts with an empty name are
// skipped.
func NewStaticProvider(users []User, minPasswordLength int, weakPasswords []string) *StaticProvider {
	kept := make([]User, 0, len(users))
	for _, u := range users {
		if u.Name != "" {
			kept = append(kept, u)
		}
	}
	return &StaticProvider{
		users:             kept,
		minPasswordLength: minPasswordLength,
		weakPasswords:     weakPasswords,
	}
}

// ValidateCredentials checks creds against every account in constant time.
func (p *StaticProvider) ValidateCredentials(ctx context.Context, creds authservice.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("credentials must not be empty")
	}
	if len(creds.Password) < p.minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", p.minPasswordLength)
	}
	for _, weak := range p.weakPasswords {
		if creds.Password == weak || strings.HasPrefix(creds.Password, weak) {
			return fmt.Errorf("weak password detected")
		}
	}

	matched := false
	for _, u := range p.users {
		userMatch := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(u.Name)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(u.Password)) == 1
		if userMatch && passMatch {
			matched = true
		}
	}
	if !matched {
		return fmt.Errorf("invalid credentials")
	}
	return nil
}

// IdentifyUser returns the role of a known account.
func (p *StaticProvider) IdentifyUser(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username must not be empty")
	}
	for _, u := range p.users {
		if subtle.ConstantTimeCompare([]byte(username), []byte(u.Name)) == 1 {
			return u.Role, nil
		}
	}
	return "", fmt.Errorf("user not found")
}

// GetRequirements returns the password requirements.
func (p *StaticProvider) GetRequirements() authservice.CredentialRequirements {
	return authservice.CredentialRequirements{
		MinPasswordLength: p.minPasswordLength,
		WeakPasswords:     p.weakPasswords,
	}
}

// Name returns the provider name.
func (p *StaticProvider) Name() string {
	return "static"
}
