package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/auth"
	"storefront-be/internal/cache"
	"storefront-be/internal/cart"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/httpapi"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/product"
	"storefront-be/internal/user"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// Overridable in tests.
var (
	initDBFunc      = db.NewDatabase
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

// infra holds the optional external collaborators. Zero values fall back to
// in-process no-ops.
type infra struct {
	cache     product.Cache
	publisher events.Publisher
	limiter   *middleware.RateLimiter
}

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database, err := initDBFunc(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaOrdersTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	var productCache product.Cache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, product cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			productCache = cache.NewProductCache(rdb, cfg.ProductCacheTTL)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.InternalServiceKey)
	go limiter.Run(ctx)

	handler, err := newServer(cfg, database, infra{
		cache:     productCache,
		publisher: publisher,
		limiter:   limiter,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.Bool("kafka", len(cfg.KafkaBrokers) > 0),
			zap.Bool("redis", productCache != nil),
		)
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newServer wires repositories, services and the router.
func newServer(cfg *config.Config, database *sql.DB, in infra) (http.Handler, error) {
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	tx := db.NewTxManager(database)
	reg := metrics.NewRegistry()

	productRepo := product.NewRepository(database)
	productSvc := product.NewService(productRepo, in.cache)

	cartRepo := cart.NewRepository(database)
	cartSvc := cart.NewService(cartRepo, productRepo)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(order.Deps{
		Repo:    orderRepo,
		Catalog: productRepo,
		Carts:   cartRepo,
		Tx:      tx,
		Events:  in.publisher,
		Stock:   productSvc,
		Metrics: reg,
	})

	paymentSvc := payment.NewService(payment.Deps{
		Repo:    payment.NewRepository(database),
		Orders:  orderRepo,
		Gateway: payment.NewSimulator(cfg.PaymentSuccessRate),
		Tx:      tx,
		Events:  in.publisher,
		Metrics: reg,
	})

	userSvc := user.NewService(user.NewRepository(database), tokens, cfg.JWTTTL, cfg.AnonJWTTTL)

	h := httpapi.NewHandler(httpapi.Deps{
		Users:    userSvc,
		Products: productSvc,
		Carts:    cartSvc,
		Orders:   orderSvc,
		Payments: paymentSvc,
		Metrics:  reg,
	})

	return h.Router(httpapi.RouterConfig{
		Tokens:      tokens,
		ActiveUsers: userSvc,
		Limiter:     in.limiter,
		CORSOrigin:  cfg.CORSOrigin,
	}), nil
}
