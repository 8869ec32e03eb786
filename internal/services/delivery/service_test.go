package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	pgrepo "github.com/infopay/backend/internal/repo/postgres"
)

type customerStoreStub struct {
	byEmail map[string]pgrepo.CustomerRecord
}

func (s *customerStoreStub) FindByEmail(_ context.Context, email string) (pgrepo.CustomerRecord, error) {
	customer, ok := s.byEmail[email]
	if !ok {
		return pgrepo.CustomerRecord{}, pgrepo.ErrCustomerNotFound
	}
	return customer, nil
}

type accessStoreStub struct {
	grants map[string]bool
}

func (s *accessStoreStub) Find(_ context.Context, customerID, productID string) (pgrepo.AccessRecord, error) {
	if !s.grants[customerID+"|"+productID] {
		return pgrepo.AccessRecord{}, pgrepo.ErrAccessNotFound
	}
	return pgrepo.AccessRecord{CustomerID: customerID, ProductID: productID}, nil
}

type productStoreStub struct {
	products map[string]pgrepo.ProductRecord
}

func (s *productStoreStub) FindByID(_ context.Context, productID string) (pgrepo.ProductRecord, error) {
	product, ok := s.products[productID]
	if !ok {
		return pgrepo.ProductRecord{}, pgrepo.ErrProductNotFound
	}
	return product, nil
}

type storageStub struct {
	presigned int
	lastKey   string
	lastTTL   time.Duration
}

func (s *storageStub) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.presigned++
	s.lastKey = key
	s.lastTTL = ttl
	return "https://s3.example/" + key + "?sig=abc", nil
}

func newTestService(contentURL string) (*Service, *storageStub) {
	customers := &customerStoreStub{byEmail: map[string]pgrepo.CustomerRecord{
		"a@b.com": {ID: "cust-1", Email: "a@b.com"},
	}}
	access := &accessStoreStub{grants: map[string]bool{"cust-1|prod-1": true}}
	products := &productStoreStub{products: map[string]pgrepo.ProductRecord{
		"prod-1": {ID: "prod-1", ContentURL: contentURL, Active: true},
	}}
	storage := &storageStub{}

	svc := NewService(Dependencies{
		Customers: customers,
		Access:    access,
		Products:  products,
		Storage:   storage,
	}, 10*time.Minute)

	return svc, storage
}

func TestLinkPassesThroughAbsoluteURL(t *testing.T) {
	svc, storage := newTestService("https://cdn.example/course")

	link, err := svc.Link(context.Background(), "A@B.com", "prod-1")
	if err != nil {
		t.Fatalf("resolve link: %v", err)
	}
	if link != "https://cdn.example/course" {
		t.Fatalf("unexpected link: %q", link)
	}
	if storage.presigned != 0 {
		t.Fatalf("absolute url must not be presigned")
	}
}

func TestLinkPresignsObjectKey(t *testing.T) {
	svc, storage := newTestService("content/course-1.zip")

	link, err := svc.Link(context.Background(), "a@b.com", "prod-1")
	if err != nil {
		t.Fatalf("resolve link: %v", err)
	}
	if storage.presigned != 1 || storage.lastKey != "content/course-1.zip" {
		t.Fatalf("object key must be presigned, calls=%d key=%q", storage.presigned, storage.lastKey)
	}
	if storage.lastTTL != 10*time.Minute {
		t.Fatalf("unexpected link ttl: %s", storage.lastTTL)
	}
	if link == "" {
		t.Fatalf("expected non-empty presigned link")
	}
}

func TestLinkRequiresAccessGrant(t *testing.T) {
	svc, _ := newTestService("https://cdn.example/course")

	if _, err := svc.Link(context.Background(), "stranger@b.com", "prod-1"); !errors.Is(err, ErrAccessNotFound) {
		t.Fatalf("unknown customer must fail access check, got %v", err)
	}
	if _, err := svc.Link(context.Background(), "a@b.com", "prod-2"); !errors.Is(err, ErrAccessNotFound) {
		t.Fatalf("missing grant must fail access check, got %v", err)
	}
	if _, err := svc.Link(context.Background(), "", "prod-1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank email must fail validation, got %v", err)
	}
}

func TestLinkWithoutContentFails(t *testing.T) {
	svc, _ := newTestService("")

	if _, err := svc.Link(context.Background(), "a@b.com", "prod-1"); !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("missing content url must fail, got %v", err)
	}
}
