package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/infopay/backend/internal/config"
	checkoutsvc "github.com/infopay/backend/internal/services/checkout"
	deliverysvc "github.com/infopay/backend/internal/services/delivery"
	paymentsvc "github.com/infopay/backend/internal/services/payments"
	ratesvc "github.com/infopay/backend/internal/services/rate"
	"github.com/infopay/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	CheckoutService *checkoutsvc.Service
	PaymentService  *paymentsvc.Service
	DeliveryService *deliverysvc.Service
	RateLimiter     *ratesvc.Limiter
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService)
	checkoutHandler.AttachRateLimit(deps.RateLimiter)
	callbackHandler := handlers.NewCallbackHandler(deps.PaymentService)
	orderHandler := handlers.NewOrderHandler(deps.PaymentService)
	accessHandler := handlers.NewAccessHandler(deps.DeliveryService)
	signatureMW := CallbackSignatureMiddleware(deps.Config.Callback.Secret, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	// Legacy paths kept for the deployed web client and the gateway's
	// configured callback URL.
	r.Post("/checkout", checkoutHandler.Create)
	r.With(signatureMW).Post("/payments/callback", callbackHandler.Handle)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/checkout", checkoutHandler.Create)
		r.With(signatureMW).Post("/payments/callback", callbackHandler.Handle)
		r.Get("/orders/{reference}", orderHandler.Get)
		r.Post("/access/link", accessHandler.Link)
	})
}
