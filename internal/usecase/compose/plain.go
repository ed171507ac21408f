package compose

import (
	"strings"

	"perfumery-notify/internal/utils/text"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from a composed message and decodes entities,
// for log previews and length checks.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	return strings.TrimSpace(doc.Text())
}

// Preview returns the first n characters of the plain-text form.
func Preview(markup string, n int) string {
	return text.TruncateRunes(strings.Join(strings.Fields(PlainText(markup)), " "), n, "…")
}

// fitPlain returns msg unchanged when it fits. Otherwise the markup is
// dropped and the plain text is cut and re-escaped, since cutting HTML could
// leave an unclosed tag that the Bot API rejects.
func fitPlain(msg string) string {
	if text.CountRunes(msg) <= MaxMessageLength {
		return msg
	}

	plain := PlainText(msg)
	limit := MaxMessageLength
	for {
		out := esc(text.TruncateRunes(plain, limit, "…"))
		n := text.CountRunes(out)
		if n <= MaxMessageLength {
			return out
		}
		limit -= n - MaxMessageLength
	}
}
