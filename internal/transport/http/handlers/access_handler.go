package handlers

import (
	"errors"
	"net/http"

	deliverysvc "github.com/infopay/backend/internal/services/delivery"
	"github.com/infopay/backend/internal/transport/http/dto"
	httperrors "github.com/infopay/backend/internal/transport/http/errors"
)

type AccessHandler struct {
	delivery *deliverysvc.Service
}

func NewAccessHandler(delivery *deliverysvc.Service) *AccessHandler {
	return &AccessHandler{delivery: delivery}
}

func (h *AccessHandler) Link(w http.ResponseWriter, r *http.Request) {
	if h.delivery == nil {
		writeInternal(w, "DELIVERY_SERVICE_UNAVAILABLE", "delivery service is unavailable")
		return
	}

	var req dto.AccessLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	link, err := h.delivery.Link(r.Context(), req.Email, req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, deliverysvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "email and productId are required")
		case errors.Is(err, deliverysvc.ErrAccessNotFound):
			writeNotFound(w, "ACCESS_NOT_FOUND", "no access grant for this product")
		case errors.Is(err, deliverysvc.ErrContentUnavailable):
			writeNotFound(w, "CONTENT_UNAVAILABLE", "product content is unavailable")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to resolve content link")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AccessLinkResponse{URL: link})
}
