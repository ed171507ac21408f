package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"perfumery-notify/internal/domain/entity"
)

// DefaultResolverTTL is how long a resolved snapshot is reused.
const DefaultResolverTTL = 30 * time.Second

// SettingsSource provides the site-wide notification settings.
type SettingsSource interface {
	GetNotificationSettings(ctx context.Context) (*entity.NotificationSettings, error)
}

// ChatSource provides the additional recipient chats.
type ChatSource interface {
	ListActive(ctx context.Context) ([]*entity.TelegramChat, error)
}

// Snapshot is one resolved view of the notification configuration.
type Snapshot struct {
	Credential string
	Recipients []string
}

// Resolver builds the recipient list from stored configuration.
//
// Order is primary chat, then the ids listed in the settings record, then the
// active chats collection. Blank and repeated ids are dropped. A nil
// ChatSource means settings only.
type Resolver struct {
	settings SettingsSource
	chats    ChatSource
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time
}

// NewResolver creates a Resolver. A ttl of zero disables caching.
func NewResolver(settings SettingsSource, chats ChatSource, ttl time.Duration) *Resolver {
	return &Resolver{
		settings: settings,
		chats:    chats,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Resolve returns the recipient list. An empty list is not an error.
func (r *Resolver) Resolve(ctx context.Context) ([]string, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Recipients, nil
}

// Credential returns the bot token, which may be empty.
func (r *Resolver) Credential(ctx context.Context) (string, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.Credential, nil
}

// Snapshot returns the credential and recipients, reading the sources at most
// once per TTL. The returned value must not be modified.
func (r *Resolver) Snapshot(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.ttl > 0 && r.now().Sub(r.cachedAt) < r.ttl {
		return r.cached, nil
	}

	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.cached, r.cachedAt = snap, r.now()
	SetRecipientsResolved(float64(len(snap.Recipients)))
	return snap, nil
}

// Invalidate drops the cached snapshot so the next call reads the sources.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

func (r *Resolver) load(ctx context.Context) (*Snapshot, error) {
	settings, err := r.settings.GetNotificationSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notification settings: %w", err)
	}
	if settings == nil {
		settings = &entity.NotificationSettings{}
	}

	ids := make([]string, 0, 1+len(settings.AdditionalChatIDs))
	ids = append(ids, settings.PrimaryChatID)
	ids = append(ids, settings.AdditionalChatIDs...)

	if r.chats != nil {
		chats, err := r.chats.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active chats: %w", err)
		}
		for _, c := range chats {
			if c != nil && c.Active {
				ids = append(ids, c.ChatID)
			}
		}
	}

	recipients := dedupe(ids)
	slog.Debug("resolved notification recipients",
		slog.Int("recipients", len(recipients)),
		slog.Bool("has_credential", settings.BotToken != ""))

	return &Snapshot{
		Credential: strings.TrimSpace(settings.BotToken),
		Recipients: recipients,
	}, nil
}

// dedupe trims ids, drops blanks and keeps the first occurrence of each.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
