package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-order-service/config"
	"storefront-order-service/internal/cleanup"
	"storefront-order-service/internal/producer"
	"storefront-order-service/internal/repository"
	"storefront-order-service/internal/service"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"
	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	retentionDays int
	pendingTTL    time.Duration
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()
	ret := config.LoadRetention()

	root := &cobra.Command{
		Use:          "cleanup",
		Short:        "Order housekeeping: stale pending expiry and retention purge",
		SilenceUsage: true,
	}
	root.PersistentFlags().IntVar(&retentionDays, "retention-days", ret.Days, "purge cancelled/refunded orders not updated for this many days (0 disables)")
	root.PersistentFlags().DurationVar(&pendingTTL, "pending-ttl", ret.PendingTTL, "cancel unpaid pending orders older than this (0 disables)")

	root.AddCommand(
		jobCommand("purge", "Delete terminal orders past retention", log, (*cleanup.CleanupService).PurgeTerminalOrders),
		jobCommand("expire", "Cancel stale unpaid pending orders", log, (*cleanup.CleanupService).ExpireStalePending),
		jobCommand("all", "Run every cleanup job", log, (*cleanup.CleanupService).RunFullCleanup),
	)

	if err := root.Execute(); err != nil {
		log.Error("cleanup failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func jobCommand(use, short string, log *zap.Logger, job func(*cleanup.CleanupService, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, closeFn := buildCleanup(log)
			defer closeFn()

			log.Info("running cleanup job", zap.String("job", use))
			if err := job(svc, ctx); err != nil {
				return err
			}
			log.Info("cleanup completed successfully", zap.String("job", use))
			return nil
		},
	}
}

func buildCleanup(log *zap.Logger) (*cleanup.CleanupService, func()) {
	dbCfg := config.LoadDB(log)
	db := database.ConnectDB(&dbCfg.Config, log)
	repos := repository.New(db)

	deps := service.Deps{Repo: repos, Log: log}
	var events *producer.OrderEventProducer
	if kc := config.LoadKafka(); len(kc.Brokers) > 0 {
		events = producer.NewOrderEventProducer(kc.Brokers, kc.OrderTopic)
		deps.Events = events
	}

	opt, err := config.LoadOrders().ServiceOptions()
	if err != nil {
		log.Fatal("invalid order settings", zap.Error(err))
	}
	orders := service.NewOrderService(deps, opt)

	svc := cleanup.NewCleanupService(repos.Orders, orders, cleanup.Options{
		RetentionDays: retentionDays,
		PendingTTL:    pendingTTL,
	}, log)

	return svc, func() {
		if events != nil {
			if err := events.Close(); err != nil {
				log.Warn("failed to close kafka writer", zap.Error(err))
			}
		}
		database.CloseDB(db, log)
	}
}
