package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	paymentsvc "github.com/infopay/backend/internal/services/payments"
	"github.com/infopay/backend/internal/transport/http/dto"
	httperrors "github.com/infopay/backend/internal/transport/http/errors"
)

type OrderHandler struct {
	payments *paymentsvc.Service
}

func NewOrderHandler(payments *paymentsvc.Service) *OrderHandler {
	return &OrderHandler{payments: payments}
}

// Get lets the checkout client poll the order status while the payment
// iframe is open.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	reference := chi.URLParam(r, "reference")

	order, err := h.payments.Get(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "order reference is required")
		case errors.Is(err, paymentsvc.ErrOrderNotFound):
			writeNotFound(w, "ORDER_NOT_FOUND", "order not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load order")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OrderStatusResponse{
		Reference: order.Reference,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	})
}
