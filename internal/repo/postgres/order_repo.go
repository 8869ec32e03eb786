package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrReferenceTaken = errors.New("order reference already taken")
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

type OrderRecord struct {
	ID              string
	Reference       string
	ProductID       string
	CustomerID      string
	ProducerID      string
	AmountCents     int64
	Status          string
	GatewayTxID     *string
	GatewayPayload  map[string]any
	AccessGrantedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderCreate struct {
	ID          string
	Reference   string
	ProductID   string
	CustomerID  string
	ProducerID  string
	AmountCents int64
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a pending order. The reference column is UNIQUE; a conflict
// surfaces as ErrReferenceTaken so the caller can mint a fresh reference and
// retry.
func (r *OrderRepo) Create(ctx context.Context, in OrderCreate) (OrderRecord, error) {
	if r.pool == nil {
		return OrderRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.Reference) == "" {
		return OrderRecord{}, fmt.Errorf("invalid order create payload")
	}
	if strings.TrimSpace(in.ProductID) == "" || strings.TrimSpace(in.CustomerID) == "" {
		return OrderRecord{}, fmt.Errorf("invalid order create payload")
	}
	if in.AmountCents <= 0 {
		return OrderRecord{}, fmt.Errorf("invalid order amount")
	}

	record, err := scanOrder(r.pool.QueryRow(ctx, `
INSERT INTO orders (
	id,
	reference,
	product_id,
	customer_id,
	producer_id,
	amount_cents,
	status,
	gateway_payload,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'pending', '{}'::jsonb, NOW(), NOW())
RETURNING id::text, reference, product_id::text, customer_id::text, producer_id::text,
	amount_cents, status, gateway_txn_id, gateway_payload, access_granted_at, created_at, updated_at
`, in.ID, strings.TrimSpace(in.Reference), in.ProductID, in.CustomerID, in.ProducerID, in.AmountCents))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return OrderRecord{}, ErrReferenceTaken
		}
		return OrderRecord{}, fmt.Errorf("create pending order: %w", err)
	}

	return record, nil
}

func (r *OrderRepo) FindByReference(ctx context.Context, reference string) (OrderRecord, error) {
	if r.pool == nil {
		return OrderRecord{}, fmt.Errorf("postgres pool is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return OrderRecord{}, fmt.Errorf("invalid order reference")
	}

	record, err := scanOrder(r.pool.QueryRow(ctx, `
SELECT id::text, reference, product_id::text, customer_id::text, producer_id::text,
	amount_cents, status, gateway_txn_id, gateway_payload, access_granted_at, created_at, updated_at
FROM orders
WHERE reference = $1
LIMIT 1
`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderRecord{}, ErrOrderNotFound
		}
		return OrderRecord{}, fmt.Errorf("find order by reference: %w", err)
	}

	return record, nil
}

// MarkOutcome transitions a pending order to a terminal status. The update
// is conditional on status = 'pending', so duplicate or out-of-order
// callbacks never rewrite a terminal order; in that case the existing row
// is returned with changed = false.
func (r *OrderRepo) MarkOutcome(ctx context.Context, reference, status, gatewayTxID string, payload map[string]any, accessGrantedAt *time.Time) (OrderRecord, bool, error) {
	if r.pool == nil {
		return OrderRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	reference = strings.TrimSpace(reference)
	status = strings.ToLower(strings.TrimSpace(status))
	if reference == "" || status == "" {
		return OrderRecord{}, false, fmt.Errorf("invalid order outcome payload")
	}

	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return OrderRecord{}, false, err
	}

	var txID *string
	if trimmed := strings.TrimSpace(gatewayTxID); trimmed != "" {
		txID = &trimmed
	}

	updated, err := scanOrder(r.pool.QueryRow(ctx, `
UPDATE orders
SET
	status = $2,
	gateway_txn_id = COALESCE($3, gateway_txn_id),
	gateway_payload = $4::jsonb,
	access_granted_at = COALESCE($5, access_granted_at),
	updated_at = NOW()
WHERE reference = $1
  AND status = 'pending'
RETURNING id::text, reference, product_id::text, customer_id::text, producer_id::text,
	amount_cents, status, gateway_txn_id, gateway_payload, access_granted_at, created_at, updated_at
`, reference, status, txID, payloadJSON, accessGrantedAt))
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return OrderRecord{}, false, fmt.Errorf("mark order outcome: %w", err)
	}

	existing, err := r.FindByReference(ctx, reference)
	if err != nil {
		return OrderRecord{}, false, err
	}
	return existing, false, nil
}

func (r *OrderRepo) CountApprovedByProduct(ctx context.Context, productID string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, fmt.Errorf("invalid product id")
	}

	var count int64
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM orders
WHERE product_id = $1
  AND status = 'approved'
`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved orders: %w", err)
	}

	return count, nil
}

// ExpirePendingOlderThan closes orders abandoned at the gateway. Only
// pending rows are touched, so a callback that races the sweep keeps its
// terminal outcome.
func (r *OrderRepo) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if cutoff.IsZero() {
		return 0, fmt.Errorf("invalid expiry cutoff")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE orders
SET status = 'expired', updated_at = NOW()
WHERE status = 'pending'
  AND created_at < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending orders: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanOrder(row pgx.Row) (OrderRecord, error) {
	var (
		record     OrderRecord
		rawPayload []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.Reference,
		&record.ProductID,
		&record.CustomerID,
		&record.ProducerID,
		&record.AmountCents,
		&record.Status,
		&record.GatewayTxID,
		&rawPayload,
		&record.AccessGrantedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return OrderRecord{}, err
	}
	record.GatewayPayload = decodePayload(rawPayload)
	return record, nil
}
