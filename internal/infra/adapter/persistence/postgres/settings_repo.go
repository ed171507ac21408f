package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

// SettingsRepo keeps the single notification settings row.
type SettingsRepo struct{ db circuitbreaker.Querier }

func NewSettingsRepo(db circuitbreaker.Querier) repository.SettingsRepository {
	return &SettingsRepo{db: db}
}

// GetNotificationSettings returns zero settings when the row does not exist.
// Additional chat ids may have been stored as numbers or strings.
func (repo *SettingsRepo) GetNotificationSettings(ctx context.Context) (*entity.NotificationSettings, error) {
	const query = `
SELECT bot_token, primary_chat_id, additional_chat_ids
FROM notification_settings
WHERE id = 1`
	var s entity.NotificationSettings
	var additional []byte
	err := repo.db.QueryRowContext(ctx, query).Scan(&s.BotToken, &s.PrimaryChatID, &additional)
	if errors.Is(err, sql.ErrNoRows) {
		return &entity.NotificationSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetNotificationSettings: %w", err)
	}

	if len(additional) > 0 {
		var raw []any
		if err := json.Unmarshal(additional, &raw); err != nil {
			return nil, fmt.Errorf("GetNotificationSettings: unmarshal additional_chat_ids: %w", err)
		}
		for _, v := range raw {
			if id := entity.ChatIDFromAny(v); id != "" {
				s.AdditionalChatIDs = append(s.AdditionalChatIDs, id)
			}
		}
	}
	return &s, nil
}

func (repo *SettingsRepo) SaveNotificationSettings(ctx context.Context, s *entity.NotificationSettings) error {
	ids := s.AdditionalChatIDs
	if ids == nil {
		ids = []string{}
	}
	additional, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("SaveNotificationSettings: marshal additional_chat_ids: %w", err)
	}

	const query = `
INSERT INTO notification_settings (id, bot_token, primary_chat_id, additional_chat_ids, updated_at)
VALUES (1, $1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
       bot_token           = EXCLUDED.bot_token,
       primary_chat_id     = EXCLUDED.primary_chat_id,
       additional_chat_ids = EXCLUDED.additional_chat_ids,
       updated_at          = EXCLUDED.updated_at`
	if _, err := repo.db.ExecContext(ctx, query, s.BotToken, s.PrimaryChatID, additional); err != nil {
		return fmt.Errorf("SaveNotificationSettings: %w", err)
	}
	return nil
}
