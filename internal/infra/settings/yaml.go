// Package settings loads notification settings and recipient chats from a
// static YAML file, for deployments without a settings table.
package settings

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"perfumery-notify/internal/domain/entity"
)

// file mirrors settings.yaml. Chat ids may be written as numbers or strings.
//
//	telegram:
//	  bot_token: ${TELEGRAM_BOT_TOKEN}
//	  primary_chat_id: 100
//	  additional_chat_ids: [200, "@perfume_ops"]
//	chats:
//	  - chat_id: 300
//	    title: Night shift
//	    active: true
type file struct {
	Telegram struct {
		BotToken          string `yaml:"bot_token"`
		PrimaryChatID     any    `yaml:"primary_chat_id"`
		AdditionalChatIDs []any  `yaml:"additional_chat_ids"`
	} `yaml:"telegram"`
	Chats []struct {
		ChatID any    `yaml:"chat_id"`
		Title  string `yaml:"title"`
		Active *bool  `yaml:"active"`
	} `yaml:"chats"`
}

// Static serves fixed settings. It satisfies the resolver's settings and
// chat sources.
type Static struct {
	settings entity.NotificationSettings
	chats    []*entity.TelegramChat
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Static, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes settings YAML. ${VAR} references in bot_token are expanded
// from the environment. Chats without an explicit active flag are active.
func Parse(data []byte) (*Static, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}

	s := &Static{
		settings: entity.NotificationSettings{
			BotToken:      strings.TrimSpace(os.ExpandEnv(f.Telegram.BotToken)),
			PrimaryChatID: entity.ChatIDFromAny(f.Telegram.PrimaryChatID),
		},
	}
	for _, v := range f.Telegram.AdditionalChatIDs {
		if id := entity.ChatIDFromAny(v); id != "" {
			s.settings.AdditionalChatIDs = append(s.settings.AdditionalChatIDs, id)
		}
	}
	for i, c := range f.Chats {
		id := entity.ChatIDFromAny(c.ChatID)
		if id == "" {
			return nil, fmt.Errorf("parse settings file: chats[%d]: chat_id is required", i)
		}
		s.chats = append(s.chats, &entity.TelegramChat{
			ID:     int64(i + 1),
			ChatID: id,
			Title:  c.Title,
			Active: c.Active == nil || *c.Active,
		})
	}
	return s, nil
}

// GetNotificationSettings returns a copy of the configured settings.
func (s *Static) GetNotificationSettings(context.Context) (*entity.NotificationSettings, error) {
	out := s.settings
	out.AdditionalChatIDs = append([]string(nil), s.settings.AdditionalChatIDs...)
	return &out, nil
}

// ListActive returns the chats marked active.
func (s *Static) ListActive(context.Context) ([]*entity.TelegramChat, error) {
	active := make([]*entity.TelegramChat, 0, len(s.chats))
	for _, c := range s.chats {
		if c.Active {
			cp := *c
			active = append(active, &cp)
		}
	}
	return active, nil
}
