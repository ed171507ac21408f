package respond

import (
	"regexp"
)

var (
	// Bot API urls embed the credential as /bot<id>:<secret>/.
	botURLTokenPattern = regexp.MustCompile(`bot[0-9]{5,}:[A-Za-z0-9_-]{20,}`)
	botTokenPattern    = regexp.MustCompile(`[0-9]{5,}:[A-Za-z0-9_-]{20,}`)

	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	// Password part of postgres://, redis:// and amqp:// urls.
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

// SanitizeError returns err's message with credentials masked. Order
// matters: the url form of a bot token is masked before the bare form.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = botURLTokenPattern.ReplaceAllString(msg, "bot****")
	msg = botTokenPattern.ReplaceAllString(msg, "****")
	msg = jwtPattern.ReplaceAllString(msg, "****")
	msg = dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
