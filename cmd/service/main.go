package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-order-service/config"
	_ "storefront-order-service/docs"
	"storefront-order-service/internal/auth"
	"storefront-order-service/internal/cache"
	"storefront-order-service/internal/cleanup"
	"storefront-order-service/internal/handlers"
	"storefront-order-service/internal/producer"
	"storefront-order-service/internal/repository"
	"storefront-order-service/internal/router"
	"storefront-order-service/internal/service"

	authv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/auth/v1"
	inventoryv1 "github.com/Anabol1ks/orderhub-pkg-proto/proto/inventory/v1"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"
	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// @Title Storefront Order API
// @Version 1.0
// @Description Заказы и остатки интернет-магазина
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)

	opt, err := cfg.Orders.ServiceOptions()
	if err != nil {
		log.Fatal("invalid order settings", zap.Error(err))
	}

	deps := service.Deps{Repo: repos, Log: log}

	// Каталог: inventory-сервис, если задан адрес, иначе локальная таблица products
	if cfg.CatalogAddr != "" {
		invConn, err := grpc.NewClient(cfg.CatalogAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatal("failed to connect to inventory service", zap.Error(err))
		}
		defer invConn.Close()
		deps.Catalog = service.NewInventoryCatalog(inventoryv1.NewInventoryServiceClient(invConn))
		// остатки ведёт inventory-сервис
		opt.ReserveStock = false
	} else {
		deps.Catalog = service.NewLocalCatalog(repos.Products)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		events := producer.NewOrderEventProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
		defer events.Close()
		deps.Events = events
		if cfg.Kafka.EmailEnable {
			emails := producer.NewEmailProducer(cfg.Kafka.Brokers, cfg.Kafka.EmailTopic)
			defer emails.Close()
			deps.Emails = emails
		}
	} else {
		log.Warn("KAFKA_BROKERS not set, order events are disabled")
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis unavailable", zap.Error(err))
		}
		defer rdb.Close()
		deps.Idempotency = rdb
	}

	var verifier auth.Verifier
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	default:
		authConn, err := grpc.NewClient(cfg.Auth.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatal("failed to connect to auth service", zap.Error(err))
		}
		defer authConn.Close()
		verifier = auth.NewIntrospectVerifier(authv1.NewAuthServiceClient(authConn))
	}

	svc := service.NewOrderService(deps, opt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Retention.SchedulerOn {
		cleanupSvc := cleanup.NewCleanupService(repos.Orders, svc, cleanup.Options{
			RetentionDays: cfg.Retention.Days,
			PendingTTL:    cfg.Retention.PendingTTL,
		}, log)
		scheduler := cleanup.NewScheduler(cleanupSvc, cleanup.Intervals{
			Expiry: cfg.Retention.ExpiryEvery,
			Purge:  cfg.Retention.PurgeEvery,
		}, log)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	r := router.Router(handlers.NewOrderHandler(svc, log), verifier, router.Options{
		GuestCheckout: opt.GuestCheckout,
		AllowOrigins:  cfg.CORSOrigins,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting Order HTTP server", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Order HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("Order HTTP server stopped gracefully")
}
