package auth

import (
	"fmt"
	"log/slog"
	"strings"
)

// weakPasswordList holds passwords rejected at startup, matched
// case-insensitively, exactly or as a short prefix.
var weakPasswordList = []string{
	"admin", "password", "123456", "secret", "admin123", "password123",
	"123456789", "12345678", "qwerty", "abc123", "letmein", "welcome",
	"1234567890", "password1", "admin1", "test", "test123", "default",
	"root", "perfume", "parfum",
}

var keyboardPatterns = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm", "qwerty", "asdfgh", "zxcvb"}

const minPasswordLength = 12

// ValidateAdmin checks the admin account before the server starts. The
// error names the offending variable but never the password.
func ValidateAdmin(u User) error {
	if u.Name == "" {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER must not be empty")
	}
	if err := checkPassword(u.Password); err != nil {
		return fmt.Errorf("admin credentials validation failed: ADMIN_USER_PASSWORD %w", err)
	}
	return nil
}

// ValidateViewer returns the viewer account when it is usable. A
// misconfigured viewer is disabled with a warning; it never stops startup.
func ValidateViewer(admin, viewer User, logger *slog.Logger) (User, bool) {
	switch {
	case viewer.Name == "":
		logger.Info("viewer role not configured - running in admin-only mode")
		return User{}, false
	case viewer.Name == admin.Name:
		logger.Warn("DEMO_USER cannot be the same as ADMIN_USER - disabling viewer role")
		return User{}, false
	}
	if err := checkPassword(viewer.Password); err != nil {
		logger.Warn("DEMO_USER_PASSWORD rejected - disabling viewer role", slog.String("reason", err.Error()))
		return User{}, false
	}
	logger.Info("viewer role configured", slog.String("user", viewer.Name))
	return viewer, true
}

func checkPassword(pass string) error {
	if pass == "" {
		return fmt.Errorf("must not be empty")
	}
	if len(pass) < minPasswordLength {
		return fmt.Errorf("must be at least %d characters (current length: %d)", minPasswordLength, len(pass))
	}
	// Pattern checks run first so that e.g. "123456789012" is reported as a
	// sequence rather than as a weak prefix.
	if isSimpleNumericPattern(pass) {
		return fmt.Errorf("must not be a simple numeric pattern")
	}
	if isKeyboardPattern(pass) {
		return fmt.Errorf("must not be a keyboard pattern")
	}
	lower := strings.ToLower(pass)
	for _, weak := range weakPasswordList {
		if lower == weak {
			return fmt.Errorf("must not be a weak password")
		}
		if strings.HasPrefix(lower, weak) && len(pass) < minPasswordLength+5 {
			return fmt.Errorf("must not be based on common weak passwords")
		}
	}
	return nil
}

// isSimpleNumericPattern matches repeated characters and ascending or
// descending digit runs (wrapping 9->0).
func isSimpleNumericPattern(pass string) bool {
	if len(pass) < minPasswordLength {
		return false
	}
	if isRepeatedChar(pass) {
		return true
	}
	for _, ch := range pass {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	ascending, descending := true, true
	for i := 1; i < len(pass); i++ {
		diff := int(pass[i]) - int(pass[i-1])
		if diff != 1 && diff != -9 {
			ascending = false
		}
		if diff != -1 && diff != 9 {
			descending = false
		}
	}
	return ascending || descending
}

func isRepeatedChar(pass string) bool {
	if pass == "" {
		return false
	}
	for i := 1; i < len(pass); i++ {
		if pass[i] != pass[0] {
			return false
		}
	}
	return true
}

func isKeyboardPattern(pass string) bool {
	lower := strings.ToLower(pass)
	for _, pattern := range keyboardPatterns {
		if strings.Contains(lower, pattern) || strings.Contains(lower, reverse(pattern)) {
			return true
		}
	}
	return false
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
