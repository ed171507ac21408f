// Package compose renders orders and contact messages as Telegram HTML.
//
// Everything here is pure: the same input always yields the same text, no I/O
// happens, and malformed input degrades to a best-effort message instead of an
// error. Only <b>, <i> and <code> tags are emitted and every user-supplied
// value is escaped.
package compose

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/utils/text"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MaxMessageLength is the Bot API limit for a single message, in characters.
const MaxMessageLength = 4096

// DefaultPickupMarker is the phrase older records put in the address line to
// mean store pickup.
const DefaultPickupMarker = "Pickup from store"

const timestampLayout = "02.01.2006 15:04"

// Free-text fields are capped before escaping so the item list, not the
// customer's comment, decides what gets cut.
const maxFreeTextRunes = 600

// Config controls locale-dependent rendering.
type Config struct {
	// Location is the shop's local time zone for timestamps.
	Location *time.Location

	// Language selects digit grouping for amounts.
	Language language.Tag

	// ItemLanguage picks LineItem.LocalizedName; empty uses Name.
	ItemLanguage string

	// Currency is appended to every amount, e.g. "₸".
	Currency string

	// PickupMarker is matched case-insensitively in the address of records
	// without a DeliveryType. Empty disables the fallback.
	PickupMarker string
}

// DefaultConfig renders in UTC with English grouping and no currency.
func DefaultConfig() Config {
	return Config{
		Location:     time.UTC,
		Language:     language.English,
		PickupMarker: DefaultPickupMarker,
	}
}

// Transition is an old/new status pair for the short status-change variant.
type Transition struct {
	From entity.OrderStatus `json:"from"`
	To   entity.OrderStatus `json:"to"`
}

// Composer builds notification texts. It is safe for concurrent use.
type Composer struct {
	cfg     Config
	printer *message.Printer
}

// New creates a Composer. A nil Location means UTC.
func New(cfg Config) *Composer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Language == language.Und {
		cfg.Language = language.English
	}
	return &Composer{
		cfg:     cfg,
		printer: message.NewPrinter(cfg.Language),
	}
}

// Compose renders the status-change variant when tr is set and the full
// order message otherwise.
func (c *Composer) Compose(order *entity.Order, tr *Transition) string {
	if tr != nil {
		return c.StatusChange(order, *tr)
	}
	return c.Order(order)
}

// Order renders the full new-order message.
func (c *Composer) Order(order *entity.Order) string {
	if order == nil {
		return "🛍 <b>New order</b>\n<i>order details unavailable</i>"
	}

	head := c.orderHead(order)
	tail := c.orderTail(order)
	all := c.itemLines(order.Items)

	msg := assemble(head, all, tail)
	// Drop items from the end until the message fits, keeping a count.
	for shown := len(all) - 1; shown >= 0 && text.CountRunes(msg) > MaxMessageLength; shown-- {
		lines := append(all[:shown:shown], fmt.Sprintf("<i>… and %d more</i>", len(all)-shown))
		msg = assemble(head, lines, tail)
	}
	return fitPlain(msg)
}

func (c *Composer) orderHead(o *entity.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🛍 <b>New order #%s</b>\n", esc(orDash(o.OrderNumber)))
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "🕒 %s\n", o.CreatedAt.In(c.cfg.Location).Format(timestampLayout))
	}
	if o.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", esc(StatusLabel(o.Status)))
	}

	b.WriteString("\n👤 <b>Customer</b>\n")
	fmt.Fprintf(&b, "Name: %s\n", esc(orDash(o.Customer.Name)))
	fmt.Fprintf(&b, "Phone: <code>%s</code>\n", esc(orDash(o.Customer.Phone)))
	if o.Customer.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", esc(o.Customer.Email))
	}

	b.WriteString("\n")
	if c.IsPickup(o.Shipping) {
		b.WriteString("🏬 <b>Pickup from store</b>\n")
	} else {
		b.WriteString("🚚 <b>Delivery</b>\n")
		fmt.Fprintf(&b, "Address: %s\n", esc(orDash(joinNonEmpty(", ",
			o.Shipping.City, o.Shipping.Address, o.Shipping.Region, o.Shipping.PostalCode))))
	}
	if o.Shipping.Comment != "" {
		fmt.Fprintf(&b, "Comment: %s\n", escClip(o.Shipping.Comment))
	}

	b.WriteString("\n📦 <b>Items</b>")
	return b.String()
}

func (c *Composer) itemLines(items []entity.LineItem) []string {
	lines := make([]string, 0, len(items))
	for i, it := range items {
		qty := it.Quantity
		if qty < 0 {
			qty = 0
		}
		price := finite(it.Price)
		lines = append(lines, fmt.Sprintf("%d. %s - %d x %s = %s",
			i+1,
			esc(orDash(it.DisplayName(c.cfg.ItemLanguage))),
			qty,
			c.FormatAmount(price),
			c.FormatAmount(price*float64(qty))))
	}
	return lines
}

func (c *Composer) orderTail(o *entity.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Subtotal: %s\n", c.FormatAmount(o.Subtotal))
	if v := finite(o.Discount); v > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", c.FormatAmount(v))
	}
	if v := finite(o.ShippingCost); v > 0 {
		fmt.Fprintf(&b, "Shipping: %s\n", c.FormatAmount(v))
	}
	if v := finite(o.Tax); v > 0 {
		fmt.Fprintf(&b, "Tax: %s\n", c.FormatAmount(v))
	}
	fmt.Fprintf(&b, "💰 <b>Total: %s</b>", c.FormatAmount(o.Total))

	var extra []string
	if o.PaymentMethod != "" {
		extra = append(extra, "Payment: "+esc(o.PaymentMethod))
	}
	if o.PointsRedeemed > 0 {
		extra = append(extra, fmt.Sprintf("Points redeemed: %d", o.PointsRedeemed))
	}
	if o.Notes != "" {
		extra = append(extra, "📝 Notes: "+escClip(o.Notes))
	}
	if len(extra) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(extra, "\n"))
	}
	return b.String()
}

func assemble(head string, items []string, tail string) string {
	var b strings.Builder
	b.WriteString(head)
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString("<i>no items</i>\n")
	}
	for _, l := range items {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(tail)
	return b.String()
}

// StatusChange renders the short status-change message.
func (c *Composer) StatusChange(order *entity.Order, tr Transition) string {
	var b strings.Builder

	num := "-"
	if order != nil && order.OrderNumber != "" {
		num = order.OrderNumber
	}
	fmt.Fprintf(&b, "🔄 <b>Order #%s: status changed</b>\n", esc(num))
	fmt.Fprintf(&b, "%s → <b>%s</b>", esc(StatusLabel(tr.From)), esc(StatusLabel(tr.To)))

	if order != nil {
		if order.Customer.Name != "" || order.Customer.Phone != "" {
			fmt.Fprintf(&b, "\n👤 %s", esc(joinNonEmpty(", ", order.Customer.Name, order.Customer.Phone)))
		}
		fmt.Fprintf(&b, "\n💰 Total: %s", c.FormatAmount(order.Total))
	}
	return fitPlain(b.String())
}

// ContactMessage renders a contact-form submission.
func (c *Composer) ContactMessage(msg *entity.ContactMessage) string {
	if msg == nil {
		return "✉️ <b>New contact message</b>\n<i>message unavailable</i>"
	}

	var b strings.Builder
	b.WriteString("✉️ <b>New contact message</b>\n\n")
	fmt.Fprintf(&b, "Name: %s\n", esc(orDash(msg.Name)))
	fmt.Fprintf(&b, "Phone: <code>%s</code>\n", esc(orDash(msg.Phone)))
	if msg.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", esc(msg.Email))
	}
	fmt.Fprintf(&b, "Subject: <b>%s</b>\n", esc(orDash(msg.Subject)))
	if !msg.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "🕒 %s\n", msg.CreatedAt.In(c.cfg.Location).Format(timestampLayout))
	}

	head := b.String() + "\n"
	budget := MaxMessageLength - text.CountRunes(head)
	body := msg.Message
	if body == "" {
		return head + "<i>(empty message)</i>"
	}
	// Escaping can only grow the text, so shrink the raw body until the
	// escaped form fits.
	for budget > 0 && text.CountRunes(esc(body)) > budget {
		over := text.CountRunes(esc(body)) - budget
		body = text.TruncateRunes(body, text.CountRunes(body)-over-1, "…")
	}
	return fitPlain(head + esc(body))
}

// IsPickup reports whether the order is collected in store. The explicit
// DeliveryType wins; the address marker is only consulted for records that
// predate it.
func (c *Composer) IsPickup(s entity.ShippingAddress) bool {
	switch s.DeliveryType {
	case entity.DeliveryTypePickup:
		return true
	case entity.DeliveryTypeDelivery:
		return false
	}
	if c.cfg.PickupMarker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s.Address), strings.ToLower(c.cfg.PickupMarker))
}

// FormatAmount renders v with zero decimal places and locale grouping,
// followed by the configured currency. NaN, infinities and negatives render
// as zero.
func (c *Composer) FormatAmount(v float64) string {
	s := c.printer.Sprint(number.Decimal(finite(v), number.MaxFractionDigits(0)))
	if c.cfg.Currency == "" {
		return s
	}
	return s + " " + esc(c.cfg.Currency)
}

var statusLabels = map[entity.OrderStatus]string{
	entity.OrderStatusPending:    "⏳ Pending",
	entity.OrderStatusConfirmed:  "✅ Confirmed",
	entity.OrderStatusProcessing: "⚙️ Processing",
	entity.OrderStatusShipped:    "🚚 Shipped",
	entity.OrderStatusDelivered:  "📦 Delivered",
	entity.OrderStatusCancelled:  "❌ Cancelled",
	entity.OrderStatusRefunded:   "💸 Refunded",
}

// StatusLabel maps a status to its display label. Unknown statuses are
// returned as is.
func StatusLabel(s entity.OrderStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	if s == "" {
		return "-"
	}
	return string(s)
}

// finite clamps NaN, ±Inf and negatives to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func esc(s string) string {
	return html.EscapeString(s)
}

func escClip(s string) string {
	return esc(text.TruncateRunes(s, maxFreeTextRunes, "…"))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
