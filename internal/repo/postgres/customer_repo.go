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

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepo struct {
	pool *pgxpool.Pool
}

type CustomerRecord struct {
	ID        string
	Email     string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewCustomerRepo(pool *pgxpool.Pool) *CustomerRepo {
	return &CustomerRepo{pool: pool}
}

// UpsertByEmail creates the customer row for a normalized email or refreshes
// name/phone on the existing one. The UNIQUE email column makes repeat
// checkouts by the same buyer land on a single row.
func (r *CustomerRepo) UpsertByEmail(ctx context.Context, customerID, email, name, phone string) (CustomerRecord, error) {
	if r.pool == nil {
		return CustomerRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return CustomerRecord{}, fmt.Errorf("invalid customer email")
	}
	if strings.TrimSpace(customerID) == "" {
		return CustomerRecord{}, fmt.Errorf("invalid customer id")
	}

	var record CustomerRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO customers (id, email, name, phone, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (email) DO UPDATE SET
	name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name),
	phone = COALESCE(NULLIF(EXCLUDED.phone, ''), customers.phone),
	updated_at = NOW()
RETURNING id::text, email, name, phone, created_at, updated_at
`, strings.TrimSpace(customerID), email, strings.TrimSpace(name), strings.TrimSpace(phone)).Scan(
		&record.ID,
		&record.Email,
		&record.Name,
		&record.Phone,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return CustomerRecord{}, fmt.Errorf("upsert customer by email: %w", err)
	}

	return record, nil
}

func (r *CustomerRepo) FindByEmail(ctx context.Context, email string) (CustomerRecord, error) {
	if r.pool == nil {
		return CustomerRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return CustomerRecord{}, fmt.Errorf("invalid customer email")
	}

	var record CustomerRecord
	err := r.pool.QueryRow(ctx, `
SELECT id::text, email, name, phone, created_at, updated_at
FROM customers
WHERE email = $1
LIMIT 1
`, email).Scan(
		&record.ID,
		&record.Email,
		&record.Name,
		&record.Phone,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerRecord{}, ErrCustomerNotFound
		}
		return CustomerRecord{}, fmt.Errorf("find customer by email: %w", err)
	}

	return record, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
