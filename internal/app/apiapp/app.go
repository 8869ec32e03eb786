package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/infopay/backend/internal/config"
	"github.com/infopay/backend/internal/infra/emis"
	s3infra "github.com/infopay/backend/internal/infra/s3"
	tginfra "github.com/infopay/backend/internal/infra/telegram"
	pgrepo "github.com/infopay/backend/internal/repo/postgres"
	redrepo "github.com/infopay/backend/internal/repo/redis"
	checkoutsvc "github.com/infopay/backend/internal/services/checkout"
	deliverysvc "github.com/infopay/backend/internal/services/delivery"
	paymentsvc "github.com/infopay/backend/internal/services/payments"
	ratesvc "github.com/infopay/backend/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	cacheRepo := redrepo.NewCacheRepo(redisClient)
	productRepo := pgrepo.NewProductRepo(pool)
	customerRepo := pgrepo.NewCustomerRepo(pool)
	orderRepo := pgrepo.NewOrderRepo(pool)
	accessRepo := pgrepo.NewAccessRepo(pool)

	var gateway checkoutsvc.Gateway
	if client, err := emis.NewClient(emis.Config{
		ChargeURL: cfg.EMIS.ChargeURL,
		FrameURL:  cfg.EMIS.FrameURL,
		Timeout:   cfg.EMIS.Timeout,
	}); err != nil {
		log.Warn("emis gateway init failed, continuing in degraded mode", zap.Error(err))
	} else {
		gateway = client
	}

	checkoutService := checkoutsvc.NewService(checkoutsvc.Dependencies{
		Products:  productRepo,
		Customers: customerRepo,
		Orders:    orderRepo,
		Gateway:   gateway,
	}, checkoutsvc.Config{
		MerchantToken: cfg.EMIS.Token,
		CallbackURL:   cfg.Callback.URL,
	})
	checkoutService.AttachProductCache(cacheRepo)

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Orders: orderRepo,
		Access: accessRepo,
	})
	if cfg.Telegram.Token != "" {
		if notifier, err := tginfra.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID); err != nil {
			log.Warn("telegram notifier init failed, sale notifications disabled", zap.Error(err))
		} else {
			paymentService.AttachNotifier(notifier, log)
		}
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	deliveryService := deliverysvc.NewService(deliverysvc.Dependencies{
		Customers: customerRepo,
		Access:    accessRepo,
		Products:  productRepo,
		Storage:   deliverysvc.NewS3Storage(s3Client, cfg.S3.Bucket),
	}, cfg.S3.LinkTTL)

	rateLimiter := ratesvc.NewLimiter(
		rateRepo,
		cfg.Limits.CheckoutPerMinute,
		cfg.Limits.CheckoutPer10Sec,
	)

	if cfg.Callback.Secret == "" {
		log.Warn("callback secret is empty, signature verification disabled")
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		CheckoutService: checkoutService,
		PaymentService:  paymentService,
		DeliveryService: deliveryService,
		RateLimiter:     rateLimiter,
		Logger:          log,
		Config:          cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
