package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SecurityPolicy is the operator-login policy of the api binary.
type SecurityPolicy struct {
	Security struct {
		Auth struct {
			MinPasswordLength int      `yaml:"min_password_length"`
			WeakPasswords     []string `yaml:"weak_passwords"`
		} `yaml:"auth"`
		PublicEndpoints []string `yaml:"public_endpoints"`
		Token           struct {
			TTLMinutes int `yaml:"ttl_minutes"`
		} `yaml:"token"`
	} `yaml:"security"`
}

// DefaultSecurityPolicy is used when no policy file is configured.
func DefaultSecurityPolicy() *SecurityPolicy {
	p := &SecurityPolicy{}
	p.Security.Auth.MinPasswordLength = 12
	p.Security.Auth.WeakPasswords = []string{"password", "123456", "admin", "test", "secret"}
	p.Security.PublicEndpoints = []string{"/auth/token", "/health", "/ready", "/live", "/metrics", "/contact-messages", "/checkout"}
	p.Security.Token.TTLMinutes = 60
	return p
}

// LoadSecurityPolicy reads a policy from a YAML file.
func LoadSecurityPolicy(path string) (*SecurityPolicy, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read security policy: %w", err)
	}

	var p SecurityPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse security policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("security policy validation failed: %w", err)
	}
	return &p, nil
}

func (p *SecurityPolicy) validate() error {
	if p.Security.Auth.MinPasswordLength < 8 {
		return fmt.Errorf("min_password_length must be at least 8")
	}
	if p.Security.Token.TTLMinutes <= 0 {
		return fmt.Errorf("token ttl_minutes must be positive")
	}
	for _, e := range p.Security.PublicEndpoints {
		if len(e) == 0 || e[0] != '/' {
			return fmt.Errorf("public endpoint %q must start with /", e)
		}
	}
	return nil
}

// MinPasswordLength returns the minimum operator password length.
func (p *SecurityPolicy) MinPasswordLength() int {
	return p.Security.Auth.MinPasswordLength
}

// WeakPasswords returns passwords rejected at login.
func (p *SecurityPolicy) WeakPasswords() []string {
	return p.Security.Auth.WeakPasswords
}

// PublicEndpoints returns the path prefixes served without a token.
func (p *SecurityPolicy) PublicEndpoints() []string {
	return p.Security.PublicEndpoints
}

// TokenTTL returns the lifetime of issued operator tokens.
func (p *SecurityPolicy) TokenTTL() time.Duration {
	return time.Duration(p.Security.Token.TTLMinutes) * time.Minute
}
