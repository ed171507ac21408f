package auth

import (
	"context"
	"strings"
)

// Credentials represents authentication credentials.
type Credentials struct {
	Username string
	Password string
}

// CredentialRequirements defines password policy requirements.
type CredentialRequirements struct {
	MinPasswordLength int
	WeakPasswords     []string
}

// AuthProvider defines the interface for authentication providers.
// This interface is framework-agnostic and can be implemented by various authentication mechanisms.
type AuthProvider interface {
	// ValidateCredentials validates user credentials.
	ValidateCredentials(ctx context.Context, creds Credentials) error

	// IdentifyUser returns the role of a known user.
	IdentifyUser(ctx context.Context, username string) (string, error)

	// GetRequirements returns the credential requirements for this provider.
	GetRequirements() CredentialRequirements

	// Name returns the name of this provider.
	Name() string
}

// AuthService handles authentication business logic: checking operator
// credentials and exchanging them for signed session tokens.
type AuthService struct {
	provider        AuthProvider
	tokens          *Tokens
	publicEndpoints []string
}

// NewAuthService creates a new authentication service.
func NewAuthService(provider AuthProvider, tokens *Tokens, publicEndpoints []string) *AuthService {
	return &AuthService{
		provider:        provider,
		tokens:          tokens,
		publicEndpoints: publicEndpoints,
	}
}

// ValidateCredentials validates user credentials via the configured provider.
func (s *AuthService) ValidateCredentials(ctx context.Context, creds Credentials) error {
	return s.provider.ValidateCredentials(ctx, creds)
}

// Login validates creds and issues a token carrying the user's role.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (string, Identity, error) {
	if err := s.provider.ValidateCredentials(ctx, creds); err != nil {
		return "", Identity{}, err
	}
	role, err := s.provider.IdentifyUser(ctx, creds.Username)
	if err != nil {
		return "", Identity{}, err
	}
	return s.tokens.Issue(creds.Username, role)
}

// Verify checks a bearer token.
func (s *AuthService) Verify(token string) (Identity, error) {
	return s.tokens.Verify(token)
}

// IsPublicEndpoint checks if a path is publicly accessible.
// Returns true if the path matches any configured public endpoint prefix.
func (s *AuthService) IsPublicEndpoint(path string) bool {
	for _, endpoint := range s.publicEndpoints {
		if strings.HasPrefix(path, endpoint) {
			return true
		}
	}
	return false
}

// GetProvider returns the current authentication provider.
func (s *AuthService) GetProvider() AuthProvider {
	return s.provider
}
