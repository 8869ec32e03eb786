package dto

type AccessLinkRequest struct {
	Email     string `json:"email"`
	ProductID string `json:"productId"`
}

type AccessLinkResponse struct {
	URL string `json:"url"`
}
