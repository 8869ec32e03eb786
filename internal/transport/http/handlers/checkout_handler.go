package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/infopay/backend/internal/infra/emis"
	pgrepo "github.com/infopay/backend/internal/repo/postgres"
	checkoutsvc "github.com/infopay/backend/internal/services/checkout"
	ratesvc "github.com/infopay/backend/internal/services/rate"
	"github.com/infopay/backend/internal/transport/http/dto"
	httperrors "github.com/infopay/backend/internal/transport/http/errors"
)

type CheckoutHandler struct {
	checkout *checkoutsvc.Service
	limiter  *ratesvc.Limiter
}

func NewCheckoutHandler(checkout *checkoutsvc.Service) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

func (h *CheckoutHandler) AttachRateLimit(limiter *ratesvc.Limiter) {
	h.limiter = limiter
}

// Create answers business failures with HTTP 200 and a bare {"error"} body.
// The legacy web client reads the error from the body and never looks at
// the status code; changing that breaks deployed checkouts.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLegacyError(w, "Corpo do pedido inválido")
		return
	}

	if h.limiter != nil {
		if key := pgrepo.NormalizeEmail(req.Email); key != "" {
			retryAfter, allowed, err := h.limiter.AllowCheckout(r.Context(), key)
			if err == nil && !allowed {
				httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
					Code:          "RATE_LIMITED",
					Message:       "demasiadas tentativas de checkout",
					RetryAfterSec: retryAfter,
				})
				return
			}
		}
	}

	result, err := h.checkout.Create(r.Context(), checkoutsvc.Input{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		ProductID:    req.ProductID,
		OfferID:      req.OfferID,
		AffiliateRef: req.AffiliateRef,
	})
	if err != nil {
		writeLegacyError(w, checkoutErrorMessage(err))
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		PaymentURL: result.PaymentURL,
		Reference:  result.Reference,
		OrderID:    result.OrderID,
	})
}

func checkoutErrorMessage(err error) string {
	var gatewayErr *emis.GatewayError
	switch {
	case errors.Is(err, checkoutsvc.ErrMerchantTokenNotConfigured):
		return "Gateway de pagamento não configurado"
	case errors.Is(err, checkoutsvc.ErrValidation):
		return "productId e email são obrigatórios"
	case errors.Is(err, checkoutsvc.ErrProductNotFound):
		return "Produto não encontrado"
	case errors.Is(err, checkoutsvc.ErrProductInactive):
		return "Produto indisponível"
	case errors.Is(err, checkoutsvc.ErrProductSoldOut):
		return "Produto esgotado"
	case errors.As(err, &gatewayErr):
		return "Falha no Gateway de Pagamento: " + gatewayErr.Body
	default:
		return "Erro interno ao processar o checkout"
	}
}

func writeLegacyError(w http.ResponseWriter, message string) {
	httperrors.Write(w, http.StatusOK, dto.LegacyErrorResponse{Error: message})
}

func decodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
