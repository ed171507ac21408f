// Package checkout serves the storefront checkout. A placed order is stored
// as pending; the worker learns about it from the order feed.
package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/respond"
	orderUC "perfumery-notify/internal/usecase/order"
)

type placeRequest struct {
	Items          []entity.LineItem      `json:"items"`
	Customer       entity.Customer        `json:"customer"`
	Shipping       entity.ShippingAddress `json:"shippingAddress"`
	Discount       float64                `json:"discount"`
	ShippingCost   float64                `json:"shippingCost"`
	Tax            float64                `json:"tax"`
	PaymentMethod  string                 `json:"paymentMethod"`
	PointsRedeemed int                    `json:"pointsRedeemed"`
	Notes          string                 `json:"notes"`
}

// PlacedDTO is returned to the storefront after checkout.
type PlacedDTO struct {
	ID          string             `json:"id"`
	OrderNumber string             `json:"orderNumber"`
	Status      entity.OrderStatus `json:"status"`
	Total       float64            `json:"total"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type PlaceHandler struct{ Svc orderUC.Service }

func (h PlaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	o, err := h.Svc.Place(r.Context(), orderUC.PlaceInput{
		Items:          req.Items,
		Customer:       req.Customer,
		Shipping:       req.Shipping,
		Discount:       req.Discount,
		ShippingCost:   req.ShippingCost,
		Tax:            req.Tax,
		PaymentMethod:  req.PaymentMethod,
		PointsRedeemed: req.PointsRedeemed,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, entity.ErrValidationFailed) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusCreated, PlacedDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       o.Total,
		CreatedAt:   o.CreatedAt,
	})
}
