package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TelegramChat is an additional recipient channel for operator notifications.
type TelegramChat struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chatId"`
	Title     string    `json:"title,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationSettings is the site-wide notification configuration record.
type NotificationSettings struct {
	BotToken          string   `json:"botToken" yaml:"bot_token"`
	PrimaryChatID     string   `json:"primaryChatId" yaml:"primary_chat_id"`
	AdditionalChatIDs []string `json:"additionalChatIds,omitempty" yaml:"additional_chat_ids"`
}

// ChatIDFromAny normalises a chat identifier that may have been stored as a
// number or a string. Unsupported types yield an empty string.
func ChatIDFromAny(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		// JSON numbers decode as float64; chat ids are integral.
		return strconv.FormatFloat(id, 'f', 0, 64)
	case fmt.Stringer:
		return strings.TrimSpace(id.String())
	default:
		return ""
	}
}
