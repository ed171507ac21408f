package entity

import (
	"time"
)

// ContactMessage is a message submitted through the storefront contact form.
type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required,max=100"`
	Phone     string    `json:"phone" validate:"required,phone"`
	Email     string    `json:"email,omitempty" validate:"omitempty,email"`
	Subject   string    `json:"subject" validate:"required,max=200"`
	Message   string    `json:"message" validate:"required,max=4000"`
	Read      bool      `json:"read"`
	Replied   bool      `json:"replied"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the contact form fields.
func (m *ContactMessage) Validate() error {
	return validateStruct(m)
}
