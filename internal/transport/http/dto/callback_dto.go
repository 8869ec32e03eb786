package dto

// CallbackRequest is the gateway's notification body. The reference arrives
// under either "reference" or "referencia" depending on the gateway path.
type CallbackRequest struct {
	Reference     string `json:"reference"`
	Referencia    string `json:"referencia"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}

func (r CallbackRequest) OrderReference() string {
	if r.Reference != "" {
		return r.Reference
	}
	return r.Referencia
}

type CallbackResponse struct {
	Received bool `json:"received"`
}
