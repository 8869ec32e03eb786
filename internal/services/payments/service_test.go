package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	pgrepo "github.com/infopay/backend/internal/repo/postgres"
)

type orderStoreStub struct {
	orders       map[string]pgrepo.OrderRecord
	outcomeCalls int
}

func newOrderStoreStub(orders ...pgrepo.OrderRecord) *orderStoreStub {
	s := &orderStoreStub{orders: make(map[string]pgrepo.OrderRecord)}
	for _, order := range orders {
		s.orders[order.Reference] = order
	}
	return s
}

func (s *orderStoreStub) FindByReference(_ context.Context, reference string) (pgrepo.OrderRecord, error) {
	order, ok := s.orders[reference]
	if !ok {
		return pgrepo.OrderRecord{}, pgrepo.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderStoreStub) MarkOutcome(_ context.Context, reference, status, gatewayTxID string, payload map[string]any, accessGrantedAt *time.Time) (pgrepo.OrderRecord, bool, error) {
	s.outcomeCalls++
	order, ok := s.orders[reference]
	if !ok {
		return pgrepo.OrderRecord{}, false, pgrepo.ErrOrderNotFound
	}
	if order.Status != "pending" {
		return order, false, nil
	}

	order.Status = status
	if gatewayTxID != "" {
		order.GatewayTxID = &gatewayTxID
	}
	order.GatewayPayload = payload
	if accessGrantedAt != nil {
		order.AccessGrantedAt = accessGrantedAt
	}
	order.UpdatedAt = time.Now().UTC()
	s.orders[reference] = order
	return order, true, nil
}

type accessStoreStub struct {
	grants map[string]bool
	calls  int
}

func newAccessStoreStub() *accessStoreStub {
	return &accessStoreStub{grants: make(map[string]bool)}
}

func (s *accessStoreStub) Grant(_ context.Context, _, customerID, productID, _ string) (bool, error) {
	s.calls++
	key := customerID + "|" + productID
	if s.grants[key] {
		return false, nil
	}
	s.grants[key] = true
	return true, nil
}

type notifierStub struct {
	notified int
	failErr  error
}

func (n *notifierStub) NotifySale(_ context.Context, _ string, _ int64) error {
	n.notified++
	return n.failErr
}

func pendingOrder() pgrepo.OrderRecord {
	now := time.Now().UTC()
	return pgrepo.OrderRecord{
		ID:          "order-1",
		Reference:   "INF-AAA111",
		ProductID:   "prod-1",
		CustomerID:  "cust-1",
		ProducerID:  "producer-1",
		AmountCents: 100000,
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestProcessApprovesAndGrantsAccessOnce(t *testing.T) {
	orders := newOrderStoreStub(pendingOrder())
	access := newAccessStoreStub()
	svc := NewService(Dependencies{Orders: orders, Access: access})

	first, err := svc.Process(context.Background(), Input{
		Reference:     "INF-AAA111",
		Status:        "SUCCESS",
		TransactionID: "tx123",
		Payload:       map[string]any{"status": "SUCCESS"},
	})
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if first.AlreadyProcessed {
		t.Fatalf("first callback must not be idempotent")
	}
	if first.Status != "approved" {
		t.Fatalf("unexpected status: %q", first.Status)
	}
	if !first.AccessGranted {
		t.Fatalf("first approval must grant access")
	}

	stored := orders.orders["INF-AAA111"]
	if stored.GatewayTxID == nil || *stored.GatewayTxID != "tx123" {
		t.Fatalf("gateway tx id must be stamped, got %v", stored.GatewayTxID)
	}
	if stored.AccessGrantedAt == nil {
		t.Fatalf("access_granted_at must be stamped on approval")
	}

	second, err := svc.Process(context.Background(), Input{
		Reference:     "INF-AAA111",
		Status:        "SUCCESS",
		TransactionID: "tx123",
	})
	if err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Fatalf("duplicate callback must report already processed")
	}
	if second.AccessGranted {
		t.Fatalf("duplicate callback must not grant access again")
	}
	if access.calls != 1 {
		t.Fatalf("expected one access grant attempt, got %d", access.calls)
	}
	if len(access.grants) != 1 {
		t.Fatalf("expected one access row, got %d", len(access.grants))
	}
}

func TestProcessRejectedDoesNotGrantAccess(t *testing.T) {
	orders := newOrderStoreStub(pendingOrder())
	access := newAccessStoreStub()
	svc := NewService(Dependencies{Orders: orders, Access: access})

	result, err := svc.Process(context.Background(), Input{
		Reference: "INF-AAA111",
		Status:    "REJECTED",
	})
	if err != nil {
		t.Fatalf("rejected callback: %v", err)
	}
	if result.Status != "rejected" {
		t.Fatalf("unexpected status: %q", result.Status)
	}
	if result.AccessGranted || access.calls != 0 {
		t.Fatalf("rejection must not touch access grants")
	}

	stored := orders.orders["INF-AAA111"]
	if stored.AccessGrantedAt != nil {
		t.Fatalf("rejection must not stamp access_granted_at")
	}
}

func TestProcessLateRejectionCannotRegressApproval(t *testing.T) {
	orders := newOrderStoreStub(pendingOrder())
	access := newAccessStoreStub()
	svc := NewService(Dependencies{Orders: orders, Access: access})

	if _, err := svc.Process(context.Background(), Input{Reference: "INF-AAA111", Status: "COMPLETED"}); err != nil {
		t.Fatalf("approval callback: %v", err)
	}

	late, err := svc.Process(context.Background(), Input{Reference: "INF-AAA111", Status: "FAILED"})
	if err != nil {
		t.Fatalf("late rejection callback: %v", err)
	}
	if !late.AlreadyProcessed {
		t.Fatalf("late rejection must be a no-op")
	}
	if orders.orders["INF-AAA111"].Status != "approved" {
		t.Fatalf("approved order must never regress, got %q", orders.orders["INF-AAA111"].Status)
	}
}

func TestProcessUnknownReference(t *testing.T) {
	svc := NewService(Dependencies{Orders: newOrderStoreStub(), Access: newAccessStoreStub()})

	if _, err := svc.Process(context.Background(), Input{Reference: "INF-MISSING", Status: "SUCCESS"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("unknown reference must fail not-found, got %v", err)
	}

	if _, err := svc.Process(context.Background(), Input{Reference: "   ", Status: "SUCCESS"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank reference must fail validation, got %v", err)
	}
}

func TestProcessNotifierFailureDoesNotFailCallback(t *testing.T) {
	orders := newOrderStoreStub(pendingOrder())
	svc := NewService(Dependencies{Orders: orders, Access: newAccessStoreStub()})
	notifier := &notifierStub{failErr: errors.New("telegram down")}
	svc.AttachNotifier(notifier, nil)

	result, err := svc.Process(context.Background(), Input{Reference: "INF-AAA111", Status: "SUCCESS"})
	if err != nil {
		t.Fatalf("callback must not fail on notifier error: %v", err)
	}
	if !result.AccessGranted {
		t.Fatalf("access must be granted despite notifier failure")
	}
	if notifier.notified != 1 {
		t.Fatalf("expected one notification attempt, got %d", notifier.notified)
	}
}

func TestGetResolvesOrderByReference(t *testing.T) {
	orders := newOrderStoreStub(pendingOrder())
	svc := NewService(Dependencies{Orders: orders, Access: newAccessStoreStub()})

	order, err := svc.Get(context.Background(), "INF-AAA111")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != "pending" {
		t.Fatalf("unexpected status: %q", order.Status)
	}

	if _, err := svc.Get(context.Background(), "INF-NOPE"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("unknown reference must fail not-found, got %v", err)
	}
}

func TestMapOutcome(t *testing.T) {
	cases := map[string]string{
		"SUCCESS":   "approved",
		"success":   "approved",
		"COMPLETED": "approved",
		"REJECTED":  "rejected",
		"FAILED":    "rejected",
		"":          "rejected",
		"DECLINED":  "rejected",
	}
	for raw, want := range cases {
		if got := mapOutcome(raw); got != want {
			t.Fatalf("mapOutcome(%q) = %q, want %q", raw, got, want)
		}
	}
}
