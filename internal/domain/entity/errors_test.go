package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "simple validation error",
			field:    "email",
			message:  "invalid format",
			expected: "validation error on field 'email': invalid format",
		},
		{
			name:     "required field error",
			field:    "phone",
			message:  "is required",
			expected: "validation error on field 'phone': is required",
		},
		{
			name:     "empty field name",
			field:    "",
			message:  "test message",
			expected: "validation error on field '': test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{
				Field:   tt.field,
				Message: tt.message,
			}

			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_MatchesSentinel(t *testing.T) {
	err := &ValidationError{Field: "email", Message: "invalid format"}

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("create contact message: %w", err)
	var validationErr *ValidationError
	assert.True(t, errors.As(wrapped, &validationErr))
	assert.Equal(t, "email", validationErr.Field)
	assert.True(t, errors.Is(wrapped, ErrValidationFailed))
}

func TestSentinelErrors_ErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "ErrNotFound", err: ErrNotFound, expected: "entity not found"},
		{name: "ErrInvalidInput", err: ErrInvalidInput, expected: "invalid input"},
		{name: "ErrValidationFailed", err: ErrValidationFailed, expected: "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSentinelErrors_Uniqueness(t *testing.T) {
	assert.False(t, errors.Is(ErrNotFound, ErrInvalidInput))
	assert.False(t, errors.Is(ErrNotFound, ErrValidationFailed))
	assert.False(t, errors.Is(ErrInvalidInput, ErrValidationFailed))
}
