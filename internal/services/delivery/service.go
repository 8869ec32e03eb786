package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pgrepo "github.com/infopay/backend/internal/repo/postgres"
)

const defaultLinkTTL = 15 * time.Minute

var (
	ErrValidation         = errors.New("validation error")
	ErrAccessNotFound     = errors.New("product access not found")
	ErrContentUnavailable = errors.New("product content unavailable")
)

type CustomerStore interface {
	FindByEmail(ctx context.Context, email string) (pgrepo.CustomerRecord, error)
}

type AccessStore interface {
	Find(ctx context.Context, customerID, productID string) (pgrepo.AccessRecord, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, productID string) (pgrepo.ProductRecord, error)
}

type ObjectStorage interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service resolves the content link for a buyer who holds an access grant.
// Absolute http(s) content URLs pass through untouched; anything else is
// treated as an object key in the content bucket and presigned.
type Service struct {
	customers CustomerStore
	access    AccessStore
	products  ProductStore
	storage   ObjectStorage
	linkTTL   time.Duration
}

type Dependencies struct {
	Customers CustomerStore
	Access    AccessStore
	Products  ProductStore
	Storage   ObjectStorage
}

func NewService(deps Dependencies, linkTTL time.Duration) *Service {
	if linkTTL <= 0 {
		linkTTL = defaultLinkTTL
	}

	return &Service{
		customers: deps.Customers,
		access:    deps.Access,
		products:  deps.Products,
		storage:   deps.Storage,
		linkTTL:   linkTTL,
	}
}

func (s *Service) Link(ctx context.Context, email, productID string) (string, error) {
	if s.customers == nil || s.access == nil || s.products == nil {
		return "", fmt.Errorf("delivery dependencies are not configured")
	}

	email = pgrepo.NormalizeEmail(email)
	productID = strings.TrimSpace(productID)
	if email == "" || productID == "" {
		return "", ErrValidation
	}

	customer, err := s.customers.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCustomerNotFound) {
			return "", ErrAccessNotFound
		}
		return "", err
	}

	if _, err := s.access.Find(ctx, customer.ID, productID); err != nil {
		if errors.Is(err, pgrepo.ErrAccessNotFound) {
			return "", ErrAccessNotFound
		}
		return "", err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProductNotFound) {
			return "", ErrContentUnavailable
		}
		return "", err
	}

	contentURL := strings.TrimSpace(product.ContentURL)
	if contentURL == "" {
		return "", ErrContentUnavailable
	}

	if strings.HasPrefix(contentURL, "http://") || strings.HasPrefix(contentURL, "https://") {
		return contentURL, nil
	}

	if s.storage == nil {
		return "", ErrContentUnavailable
	}

	link, err := s.storage.PresignGet(ctx, contentURL, s.linkTTL)
	if err != nil {
		return "", fmt.Errorf("presign content link: %w", err)
	}

	return link, nil
}
