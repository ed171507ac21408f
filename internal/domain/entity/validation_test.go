package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validContactMessage() ContactMessage {
	return ContactMessage{
		Name:    "Aigerim",
		Phone:   "+7 701 234 56 78",
		Email:   "aigerim@example.com",
		Subject: "Gift wrapping",
		Message: "Do you offer gift wrapping for orders?",
	}
}

func TestContactMessage_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m *ContactMessage)
		wantField string
	}{
		{name: "valid message", mutate: func(m *ContactMessage) {}},
		{name: "email is optional", mutate: func(m *ContactMessage) { m.Email = "" }},
		{name: "missing name", mutate: func(m *ContactMessage) { m.Name = "" }, wantField: "name"},
		{name: "missing phone", mutate: func(m *ContactMessage) { m.Phone = "" }, wantField: "phone"},
		{name: "malformed phone", mutate: func(m *ContactMessage) { m.Phone = "call me" }, wantField: "phone"},
		{name: "too few digits", mutate: func(m *ContactMessage) { m.Phone = "+1-23" }, wantField: "phone"},
		{name: "malformed email", mutate: func(m *ContactMessage) { m.Email = "not-an-email" }, wantField: "email"},
		{name: "missing subject", mutate: func(m *ContactMessage) { m.Subject = "" }, wantField: "subject"},
		{name: "message too long", mutate: func(m *ContactMessage) { m.Message = strings.Repeat("a", 4001) }, wantField: "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validContactMessage()
			tt.mutate(&msg)

			err := msg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			assert.True(t, errors.Is(err, ErrValidationFailed))
		})
	}
}

func TestValidateChatID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{id: "123456789"},
		{id: "-1001234567890"},
		{id: "@perfume_orders"},
		{id: "", wantErr: true},
		{id: "   ", wantErr: true},
		{id: "@abc", wantErr: true},
		{id: "12ab", wantErr: true},
		{id: "https://t.me/shop", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateChatID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBotToken(t *testing.T) {
	assert.NoError(t, ValidateBotToken("123456789:AAHk2xT_abcdefghijklmnopqrstu"))

	for _, bad := range []string{"", "token", "123:short", "abc:AAHk2xT_abcdefghijklmnopqrstu"} {
		err := ValidateBotToken(bad)
		assert.Error(t, err, "token %q", bad)
	}
}
