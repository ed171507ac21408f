package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/observability/metrics"
)

type credentialSource interface {
	Credential(ctx context.Context) (string, error)
}

type botChecker interface {
	GetMe(ctx context.Context, credential string) (*notifier.BotInfo, error)
}

var errNoCredential = errors.New("no bot token configured")

// credentialCheck returns a job that verifies the configured bot token with
// one getMe call.
func credentialCheck(src credentialSource, bot botChecker) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		token, err := src.Credential(ctx)
		if err != nil {
			return fmt.Errorf("load credential: %w", err)
		}
		if token == "" {
			metrics.RecordCredentialCheck(metrics.CredentialInvalid)
			return errNoCredential
		}

		info, err := bot.GetMe(ctx, token)
		switch {
		case err == nil:
			metrics.RecordCredentialCheck(metrics.CredentialValid)
			slog.Debug("bot credential valid", slog.String("bot", info.Username))
			return nil
		case notifier.IsFatal(err):
			metrics.RecordCredentialCheck(metrics.CredentialInvalid)
			slog.Error("bot token rejected by Telegram, notifications will fail",
				slog.String("token", notifier.MaskToken(token)))
		default:
			metrics.RecordCredentialCheck(metrics.CredentialUnavailable)
		}
		return err
	}
}
