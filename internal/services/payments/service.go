package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pgrepo "github.com/infopay/backend/internal/repo/postgres"
)

const (
	statusApproved = "approved"
	statusRejected = "rejected"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrOrderNotFound = errors.New("order not found")
)

type OrderStore interface {
	FindByReference(ctx context.Context, reference string) (pgrepo.OrderRecord, error)
	MarkOutcome(ctx context.Context, reference, status, gatewayTxID string, payload map[string]any, accessGrantedAt *time.Time) (pgrepo.OrderRecord, bool, error)
}

type AccessStore interface {
	Grant(ctx context.Context, accessID, customerID, productID, orderID string) (bool, error)
}

type SaleNotifier interface {
	NotifySale(ctx context.Context, reference string, amountCents int64) error
}

// Service reconciles the gateway's asynchronous callback with the order
// record, exactly once. Idempotency lives in the store: the status
// transition is a conditional update and the access grant is an
// insert-if-absent, so duplicate callbacks cannot double-apply.
type Service struct {
	orders   OrderStore
	access   AccessStore
	notifier SaleNotifier
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

type Dependencies struct {
	Orders OrderStore
	Access AccessStore
}

type Input struct {
	Reference     string
	Status        string
	TransactionID string
	Payload       map[string]any
}

type Result struct {
	Reference        string
	OrderID          string
	Status           string
	AlreadyProcessed bool
	AccessGranted    bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		orders: deps.Orders,
		access: deps.Access,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Service) AttachNotifier(notifier SaleNotifier, log *zap.Logger) {
	s.notifier = notifier
	if log != nil {
		s.logger = log
	}
}

func (s *Service) Process(ctx context.Context, in Input) (Result, error) {
	if s.orders == nil || s.access == nil {
		return Result{}, fmt.Errorf("payments dependencies are not configured")
	}

	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return Result{}, ErrValidation
	}

	outcome := mapOutcome(in.Status)

	var accessAt *time.Time
	if outcome == statusApproved {
		now := s.now().UTC()
		accessAt = &now
	}

	order, changed, err := s.orders.MarkOutcome(ctx, reference, outcome, strings.TrimSpace(in.TransactionID), in.Payload, accessAt)
	if err != nil {
		if errors.Is(err, pgrepo.ErrOrderNotFound) {
			return Result{}, ErrOrderNotFound
		}
		return Result{}, err
	}

	if !changed {
		return Result{
			Reference:        order.Reference,
			OrderID:          order.ID,
			Status:           order.Status,
			AlreadyProcessed: true,
		}, nil
	}

	result := Result{
		Reference: order.Reference,
		OrderID:   order.ID,
		Status:    order.Status,
	}

	if order.Status == statusApproved {
		granted, err := s.access.Grant(ctx, s.newID(), order.CustomerID, order.ProductID, order.ID)
		if err != nil {
			return Result{}, err
		}
		result.AccessGranted = granted

		if s.notifier != nil {
			if err := s.notifier.NotifySale(ctx, order.Reference, order.AmountCents); err != nil {
				s.logger.Warn("sale notification failed", zap.Error(err), zap.String("reference", order.Reference))
			}
		}
	}

	return result, nil
}

// Get resolves an order by reference for status polling.
func (s *Service) Get(ctx context.Context, reference string) (pgrepo.OrderRecord, error) {
	if s.orders == nil {
		return pgrepo.OrderRecord{}, fmt.Errorf("payments dependencies are not configured")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return pgrepo.OrderRecord{}, ErrValidation
	}

	order, err := s.orders.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, pgrepo.ErrOrderNotFound) {
			return pgrepo.OrderRecord{}, ErrOrderNotFound
		}
		return pgrepo.OrderRecord{}, err
	}

	return order, nil
}

// mapOutcome collapses the gateway's outcome vocabulary to the two internal
// terminal states. Anything that is not an explicit success reads as a
// rejection.
func mapOutcome(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS", "COMPLETED":
		return statusApproved
	default:
		return statusRejected
	}
}
