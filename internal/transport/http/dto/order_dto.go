package dto

import "time"

type OrderStatusResponse struct {
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
