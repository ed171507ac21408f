package settings

import (
	"context"

	"perfumery-notify/internal/domain/entity"
)

// Source is anything that yields notification settings.
type Source interface {
	GetNotificationSettings(ctx context.Context) (*entity.NotificationSettings, error)
}

// WithDefaults fills an empty bot token or primary chat from the process
// environment. Stored values always win.
type WithDefaults struct {
	Source        Source
	BotToken      string
	PrimaryChatID string
}

// GetNotificationSettings returns the stored settings with blanks filled in.
func (d WithDefaults) GetNotificationSettings(ctx context.Context) (*entity.NotificationSettings, error) {
	s, err := d.Source.GetNotificationSettings(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &entity.NotificationSettings{}
	}
	if s.BotToken == "" {
		s.BotToken = d.BotToken
	}
	if s.PrimaryChatID == "" {
		s.PrimaryChatID = d.PrimaryChatID
	}
	return s, nil
}
