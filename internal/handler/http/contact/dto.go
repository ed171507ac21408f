package contact

import "time"

// DTO is the response body for a stored contact message.
type DTO struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type createRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}
