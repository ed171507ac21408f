package entity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// phonePattern accepts an optional leading '+' followed by 7-15 digits,
	// with spaces, dashes and parentheses allowed as separators.
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{7,20}$`)

	// botTokenPattern is "<bot id>:<secret>" as issued by BotFather.
	botTokenPattern = regexp.MustCompile(`^[0-9]{5,}:[A-Za-z0-9_-]{20,}$`)

	// chatIDPattern matches numeric chat ids (negative for groups and
	// channels) and public @channel usernames.
	chatIDPattern = regexp.MustCompile(`^(-?[0-9]{1,20}|@[A-Za-z][A-Za-z0-9_]{4,31})$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return isValidPhone(fl.Field().String())
		})
	})
	return validate
}

// validateStruct runs tag-based validation and reports the first failing
// field as a *ValidationError.
func validateStruct(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: describeTag(fe),
		}
	}
	return fmt.Errorf("validate: %w", err)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must not be less than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func isValidPhone(phone string) bool {
	if !phonePattern.MatchString(phone) {
		return false
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// ValidateChatID checks that id looks like a Telegram chat identifier.
func ValidateChatID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "chat_id", Message: "chat id is required"}
	}
	if !chatIDPattern.MatchString(id) {
		return &ValidationError{Field: "chat_id", Message: "chat id must be numeric or an @username"}
	}
	return nil
}

// ValidateBotToken checks the shape of a bot credential without contacting
// the provider.
func ValidateBotToken(token string) error {
	if token == "" {
		return &ValidationError{Field: "bot_token", Message: "bot token is required"}
	}
	if !botTokenPattern.MatchString(token) {
		return &ValidationError{Field: "bot_token", Message: "bot token has an invalid format"}
	}
	return nil
}
