package dto

// Request/response field names follow the legacy web client contract
// (camelCase, errors as a bare "error" string with HTTP 200).

type CheckoutRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ProductID    string `json:"productId"`
	OfferID      string `json:"offerId,omitempty"`
	AffiliateRef string `json:"affiliateRef,omitempty"`
}

type CheckoutResponse struct {
	PaymentURL string `json:"paymentUrl"`
	Reference  string `json:"reference"`
	OrderID    string `json:"orderId"`
}

type LegacyErrorResponse struct {
	Error string `json:"error"`
}
