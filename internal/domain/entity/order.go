package entity

import (
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DeliveryType distinguishes store pickup from courier delivery.
// The empty value marks records written before the field existed.
type DeliveryType string

const (
	DeliveryTypeUnknown  DeliveryType = ""
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDelivery DeliveryType = "delivery"
)

// Order is a placed storefront order. The notification pipeline only reads it.
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	Status      OrderStatus `json:"status"`

	StatusHistory []StatusChange `json:"statusHistory,omitempty"`

	Items    []LineItem      `json:"items" validate:"required,min=1,dive"`
	Customer Customer        `json:"customer"`
	Shipping ShippingAddress `json:"shippingAddress"`

	Subtotal     float64 `json:"subtotal"`
	Discount     float64 `json:"discount"`
	ShippingCost float64 `json:"shippingCost"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`

	PaymentMethod  string `json:"paymentMethod,omitempty"`
	PointsRedeemed int    `json:"pointsRedeemed,omitempty"`
	Notes          string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// LineItem is a single product line. Price is the unit price after any
// product-level discount.
type LineItem struct {
	ProductID     string            `json:"productId"`
	Name          string            `json:"name" validate:"required,max=200"`
	LocalizedName map[string]string `json:"nameLocalized,omitempty"`
	Image         string            `json:"image,omitempty"`
	Price         float64           `json:"price" validate:"gte=0"`
	Quantity      int               `json:"quantity" validate:"gt=0"`
}

// LineTotal returns price multiplied by quantity.
func (li LineItem) LineTotal() float64 {
	return li.Price * float64(li.Quantity)
}

// DisplayName returns the name for the given language, falling back to Name.
func (li LineItem) DisplayName(lang string) string {
	if n, ok := li.LocalizedName[lang]; ok && n != "" {
		return n
	}
	return li.Name
}

// Customer holds the buyer's contact details.
type Customer struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// ShippingAddress describes where the order goes.
type ShippingAddress struct {
	DeliveryType DeliveryType `json:"deliveryType,omitempty" validate:"omitempty,oneof=pickup delivery"`
	Address      string       `json:"address" validate:"required_if=DeliveryType delivery,max=500"`
	City         string       `json:"city,omitempty"`
	Region       string       `json:"region,omitempty"`
	PostalCode   string       `json:"postalCode,omitempty"`
	Comment      string       `json:"comment,omitempty"`
}

// Validate checks the fields a storefront checkout must supply.
func (o *Order) Validate() error {
	return validateStruct(o)
}

// ExpectedTotal computes subtotal + shipping + tax - discount.
func (o *Order) ExpectedTotal() float64 {
	return o.Subtotal + o.ShippingCost + o.Tax - o.Discount
}

// Age returns how long ago the order was created relative to now.
func (o *Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}
