package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepo struct {
	pool *pgxpool.Pool
}

type ProductRecord struct {
	ID             string         `json:"id"`
	ProducerID     string         `json:"producer_id"`
	Name           string         `json:"name"`
	PriceCents     int64          `json:"price_cents"`
	Active         bool           `json:"active"`
	ContentURL     string         `json:"content_url"`
	CheckoutConfig map[string]any `json:"checkout_config"`
	StockLimit     *int32         `json:"stock_limit"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) FindByID(ctx context.Context, productID string) (ProductRecord, error) {
	if r.pool == nil {
		return ProductRecord{}, fmt.Errorf("postgres pool is nil")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductRecord{}, fmt.Errorf("invalid product id")
	}

	var (
		record    ProductRecord
		rawConfig []byte
	)
	err := r.pool.QueryRow(ctx, `
SELECT id::text, producer_id::text, name, price_cents, active, content_url, checkout_config, stock_limit, created_at, updated_at
FROM products
WHERE id = $1
LIMIT 1
`, productID).Scan(
		&record.ID,
		&record.ProducerID,
		&record.Name,
		&record.PriceCents,
		&record.Active,
		&record.ContentURL,
		&rawConfig,
		&record.StockLimit,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, ErrProductNotFound
		}
		return ProductRecord{}, fmt.Errorf("find product by id: %w", err)
	}

	record.CheckoutConfig = decodePayload(rawConfig)
	return record, nil
}

// decodePayload keeps opaque jsonb columns tolerant: malformed or empty
// payloads read back as an empty map instead of failing the row scan.
func decodePayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{}
	}
	if payload == nil {
		return map[string]any{}
	}
	return payload
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(raw), nil
}
