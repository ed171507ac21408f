package metrics

// RecordOrderPlaced records an accepted order and its total.
func RecordOrderPlaced(total float64) {
	OrdersPlacedTotal.Inc()
	if total > 0 {
		OrderValueTotal.Add(total)
	}
}

// RecordStatusChange records a transition into status.
func RecordStatusChange(status string) {
	OrderStatusChangesTotal.WithLabelValues(status).Inc()
}

// Contact submission results.
const (
	ContactAccepted = "accepted"
	ContactRejected = "rejected"
	ContactError    = "error"
)

// RecordContactMessage records the outcome of a contact form submission.
func RecordContactMessage(result string) {
	ContactMessagesTotal.WithLabelValues(result).Inc()
}

// Credential check results.
const (
	CredentialValid       = "valid"
	CredentialInvalid     = "invalid"
	CredentialUnavailable = "unavailable"
)

// RecordCredentialCheck records the outcome of a bot getMe check.
func RecordCredentialCheck(result string) {
	BotCredentialChecksTotal.WithLabelValues(result).Inc()
}
