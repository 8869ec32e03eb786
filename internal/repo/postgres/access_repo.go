package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAccessNotFound = errors.New("product access not found")

type AccessRepo struct {
	pool *pgxpool.Pool
}

type AccessRecord struct {
	ID         string
	CustomerID string
	ProductID  string
	OrderID    string
	CreatedAt  time.Time
}

func NewAccessRepo(pool *pgxpool.Pool) *AccessRepo {
	return &AccessRepo{pool: pool}
}

// Grant inserts the (customer, product) access row. The UNIQUE constraint
// on the pair absorbs duplicate gateway callbacks: a second grant is a
// no-op and reports inserted = false.
func (r *AccessRepo) Grant(ctx context.Context, accessID, customerID, productID, orderID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(accessID) == "" || strings.TrimSpace(customerID) == "" || strings.TrimSpace(productID) == "" {
		return false, fmt.Errorf("invalid access grant payload")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO product_access (id, customer_id, product_id, order_id, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (customer_id, product_id) DO NOTHING
`, accessID, customerID, productID, orderID)
	if err != nil {
		return false, fmt.Errorf("grant product access: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *AccessRepo) Find(ctx context.Context, customerID, productID string) (AccessRecord, error) {
	if r.pool == nil {
		return AccessRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(productID) == "" {
		return AccessRecord{}, fmt.Errorf("invalid access lookup payload")
	}

	var record AccessRecord
	err := r.pool.QueryRow(ctx, `
SELECT id::text, customer_id::text, product_id::text, order_id::text, created_at
FROM product_access
WHERE customer_id = $1
  AND product_id = $2
LIMIT 1
`, customerID, productID).Scan(
		&record.ID,
		&record.CustomerID,
		&record.ProductID,
		&record.OrderID,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessRecord{}, ErrAccessNotFound
		}
		return AccessRecord{}, fmt.Errorf("find product access: %w", err)
	}

	return record, nil
}
