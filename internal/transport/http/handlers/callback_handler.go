package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	paymentsvc "github.com/infopay/backend/internal/services/payments"
	"github.com/infopay/backend/internal/transport/http/dto"
	httperrors "github.com/infopay/backend/internal/transport/http/errors"
)

const maxCallbackBody = 1 << 20

type CallbackHandler struct {
	payments *paymentsvc.Service
}

func NewCallbackHandler(payments *paymentsvc.Service) *CallbackHandler {
	return &CallbackHandler{payments: payments}
}

// Handle acknowledges the gateway with 200 once the event is logically
// handled (including duplicates), 404 when the reference matches nothing,
// and 500 only on unexpected failure so the gateway's retry policy kicks in.
func (h *CallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		httperrors.Write(w, http.StatusInternalServerError, dto.LegacyErrorResponse{Error: "serviço de pagamentos indisponível"})
		return
	}

	input, err := parseCallback(r)
	if err != nil {
		httperrors.Write(w, http.StatusNotFound, dto.LegacyErrorResponse{Error: "referência em falta"})
		return
	}

	if _, err := h.payments.Process(r.Context(), input); err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrOrderNotFound), errors.Is(err, paymentsvc.ErrValidation):
			httperrors.Write(w, http.StatusNotFound, dto.LegacyErrorResponse{Error: "pedido não encontrado"})
		default:
			httperrors.Write(w, http.StatusInternalServerError, dto.LegacyErrorResponse{Error: "falha ao processar callback"})
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CallbackResponse{Received: true})
}

// parseCallback content-negotiates the gateway's body: JSON or form
// encoding, reference under either accepted name. The raw payload is kept
// verbatim for the order's audit column.
func parseCallback(r *http.Request) (paymentsvc.Input, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return paymentsvc.Input{}, err
		}

		payload := make(map[string]any, len(r.PostForm))
		for key := range r.PostForm {
			payload[key] = r.PostForm.Get(key)
		}

		reference := r.PostForm.Get("reference")
		if reference == "" {
			reference = r.PostForm.Get("referencia")
		}
		if strings.TrimSpace(reference) == "" {
			return paymentsvc.Input{}, errors.New("callback reference is missing")
		}

		return paymentsvc.Input{
			Reference:     reference,
			Status:        r.PostForm.Get("status"),
			TransactionID: r.PostForm.Get("transactionId"),
			Payload:       payload,
		}, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		return paymentsvc.Input{}, err
	}

	var req dto.CallbackRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return paymentsvc.Input{}, err
	}
	if strings.TrimSpace(req.OrderReference()) == "" {
		return paymentsvc.Input{}, errors.New("callback reference is missing")
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		payload = map[string]any{}
	}

	return paymentsvc.Input{
		Reference:     req.OrderReference(),
		Status:        req.Status,
		TransactionID: req.TransactionID,
		Payload:       payload,
	}, nil
}
