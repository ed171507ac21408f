package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrMissingCredential indicates that no bot token is configured.
	// Nothing is sent; operators must fill in the notification settings.
	ErrMissingCredential = errors.New("telegram bot token is not configured")

	// ErrNoRecipients indicates that neither a primary chat nor any
	// additional chat is configured.
	ErrNoRecipients = errors.New("no telegram recipients configured")

	// ErrEmptyMessage indicates that composing produced no text.
	ErrEmptyMessage = errors.New("notification message is empty")

	// ErrDeliveryFailed indicates that no recipient received the message.
	// SendWithGuarantee retries on it.
	ErrDeliveryFailed = errors.New("notification was not delivered to any recipient")

	// ErrOrderNotFound indicates that the order to notify about does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrShuttingDown is returned for background work submitted after Shutdown.
	ErrShuttingDown = errors.New("notification service is shutting down")
)

// IsConfigurationError reports whether err means the notification settings
// are incomplete. Repeating a cycle cannot fix it.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrNoRecipients) ||
		errors.Is(err, ErrEmptyMessage)
}
