package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/infopay/backend/internal/infra/emis"
	pgrepo "github.com/infopay/backend/internal/repo/postgres"
)

const (
	referencePrefix    = "INF-"
	referenceAttempts  = 3
	productCacheTTL    = time.Minute
	productCachePrefix = "product:cache:"
)

var (
	ErrValidation                 = errors.New("validation error")
	ErrMerchantTokenNotConfigured = errors.New("merchant token is not configured")
	ErrProductNotFound            = errors.New("product not found")
	ErrProductInactive            = errors.New("product is inactive")
	ErrProductSoldOut             = errors.New("product is sold out")
)

type ProductStore interface {
	FindByID(ctx context.Context, productID string) (pgrepo.ProductRecord, error)
}

type CustomerStore interface {
	UpsertByEmail(ctx context.Context, customerID, email, name, phone string) (pgrepo.CustomerRecord, error)
}

type OrderStore interface {
	Create(ctx context.Context, in pgrepo.OrderCreate) (pgrepo.OrderRecord, error)
	CountApprovedByProduct(ctx context.Context, productID string) (int64, error)
}

type Gateway interface {
	CreateFrameToken(ctx context.Context, req emis.ChargeRequest) (string, error)
	FrameURL(token string) string
}

type ProductCache interface {
	Get(ctx context.Context, key string, target any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Config struct {
	MerchantToken string
	CallbackURL   string
}

// Service turns a buyer's intent into a pending order plus a hosted-payment
// frame URL. The product price and producer are frozen into the order at
// creation; later product edits never change what the buyer is charged.
type Service struct {
	products  ProductStore
	customers CustomerStore
	orders    OrderStore
	gateway   Gateway
	cache     ProductCache
	cfg       Config
	newID     func() string
}

type Dependencies struct {
	Products  ProductStore
	Customers CustomerStore
	Orders    OrderStore
	Gateway   Gateway
}

type Input struct {
	Name         string
	Email        string
	Phone        string
	ProductID    string
	OfferID      string
	AffiliateRef string
}

type Result struct {
	PaymentURL string
	Reference  string
	OrderID    string
}

func NewService(deps Dependencies, cfg Config) *Service {
	return &Service{
		products:  deps.Products,
		customers: deps.Customers,
		orders:    deps.Orders,
		gateway:   deps.Gateway,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

func (s *Service) AttachProductCache(cache ProductCache) {
	s.cache = cache
}

func (s *Service) Create(ctx context.Context, in Input) (Result, error) {
	if s.products == nil || s.customers == nil || s.orders == nil || s.gateway == nil {
		return Result{}, fmt.Errorf("checkout dependencies are not configured")
	}
	if strings.TrimSpace(s.cfg.MerchantToken) == "" {
		return Result{}, ErrMerchantTokenNotConfigured
	}

	email := pgrepo.NormalizeEmail(in.Email)
	productID := strings.TrimSpace(in.ProductID)
	if email == "" || productID == "" {
		return Result{}, ErrValidation
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if !product.Active {
		return Result{}, ErrProductInactive
	}
	if product.StockLimit != nil {
		sold, err := s.orders.CountApprovedByProduct(ctx, product.ID)
		if err != nil {
			return Result{}, err
		}
		if sold >= int64(*product.StockLimit) {
			return Result{}, ErrProductSoldOut
		}
	}

	customer, err := s.customers.UpsertByEmail(ctx, s.newID(), email, in.Name, in.Phone)
	if err != nil {
		return Result{}, err
	}

	order, err := s.createOrder(ctx, product, customer)
	if err != nil {
		return Result{}, err
	}

	token, err := s.gateway.CreateFrameToken(ctx, emis.ChargeRequest{
		Token:        s.cfg.MerchantToken,
		Reference:    order.Reference,
		Amount:       FormatAmount(order.AmountCents),
		CallbackURL:  s.cfg.CallbackURL,
		ClientName:   strings.TrimSpace(in.Name),
		ClientEmail:  email,
		ClientMSISDN: strings.TrimSpace(in.Phone),
		Mobile:       emis.MobilePayment,
	})
	if err != nil {
		// The order stays pending; the expiry sweep reclaims it later.
		return Result{}, err
	}

	return Result{
		PaymentURL: s.gateway.FrameURL(token),
		Reference:  order.Reference,
		OrderID:    order.ID,
	}, nil
}

func (s *Service) loadProduct(ctx context.Context, productID string) (pgrepo.ProductRecord, error) {
	if s.cache != nil {
		var cached pgrepo.ProductRecord
		hit, err := s.cache.Get(ctx, productCachePrefix+productID, &cached)
		if err == nil && hit {
			return cached, nil
		}
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProductNotFound) {
			return pgrepo.ProductRecord{}, ErrProductNotFound
		}
		return pgrepo.ProductRecord{}, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, productCachePrefix+product.ID, product, productCacheTTL)
	}

	return product, nil
}

// createOrder retries reference minting a few times: references are random
// enough that a collision is vanishingly rare, but the UNIQUE constraint is
// the actual guarantee and a conflict just means "roll again".
func (s *Service) createOrder(ctx context.Context, product pgrepo.ProductRecord, customer pgrepo.CustomerRecord) (pgrepo.OrderRecord, error) {
	var lastErr error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		order, err := s.orders.Create(ctx, pgrepo.OrderCreate{
			ID:          s.newID(),
			Reference:   s.newReference(),
			ProductID:   product.ID,
			CustomerID:  customer.ID,
			ProducerID:  product.ProducerID,
			AmountCents: product.PriceCents,
		})
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, pgrepo.ErrReferenceTaken) {
			return pgrepo.OrderRecord{}, err
		}
		lastErr = err
	}
	return pgrepo.OrderRecord{}, fmt.Errorf("mint unique order reference: %w", lastErr)
}

func (s *Service) newReference() string {
	raw := strings.ReplaceAll(s.newID(), "-", "")
	if len(raw) > 10 {
		raw = raw[:10]
	}
	return referencePrefix + strings.ToUpper(raw)
}

// FormatAmount renders integer centavos as the two-decimal string the
// gateway expects ("1000.00" for 100000).
func FormatAmount(cents int64) string {
	if cents < 0 {
		cents = 0
	}
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
