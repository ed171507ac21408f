package repository

import (
	"context"

	"perfumery-notify/internal/domain/entity"
)

type SettingsRepository interface {
	// GetNotificationSettings returns the stored settings. A missing record
	// yields a zero-valued settings struct, not an error.
	GetNotificationSettings(ctx context.Context) (*entity.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, s *entity.NotificationSettings) error
}

type TelegramChatRepository interface {
	List(ctx context.Context) ([]*entity.TelegramChat, error)
	ListActive(ctx context.Context) ([]*entity.TelegramChat, error)
	Create(ctx context.Context, chat *entity.TelegramChat) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
