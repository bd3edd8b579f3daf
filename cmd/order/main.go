package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/order_lifecycle/internal/audit"
	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/config"
	"github.com/Skotchmaster/order_lifecycle/internal/httpserver"
	"github.com/Skotchmaster/order_lifecycle/internal/notify"
	"github.com/Skotchmaster/order_lifecycle/internal/repo"
	"github.com/Skotchmaster/order_lifecycle/internal/service"
	"github.com/Skotchmaster/order_lifecycle/pkg/db"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
	loggingmw "github.com/Skotchmaster/order_lifecycle/pkg/middleware/logging"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	e := echo.New()
	e.HideBanner = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err == nil {
		err = (&repo.GormRepo{DB: gdb}).Migrate(initCtx)
	}
	cancel()
	if err != nil {
		logger.Error("db_init_error", "error", err)
		os.Exit(1)
	}

	Repo := &repo.GormRepo{DB: gdb}

	var notifier notify.Notifier = notify.Nop{}
	var kafkaPub *notify.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.NotifyTopic)
		notifier = kafkaPub
	} else {
		logger.Warn("notifications_disabled", "reason", "KAFKA_BROKERS not set")
	}

	var indexer audit.Indexer = audit.Nop{}
	adminHandler := &httpserver.AdminHTTP{}
	if cfg.ESURL != "" {
		esClient, err := audit.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Error("es_init_error", "error", err)
			os.Exit(1)
		}
		es := audit.NewESIndexer(esClient, cfg.AuditIndex)
		indexer = es
		adminHandler.Search = es
	} else {
		logger.Warn("audit_index_disabled", "reason", "ES_URL not set")
	}

	orderService, err := service.NewOrderService(service.Deps{
		Repo:             Repo,
		Carrier:          carrier.NewHTTPClient(cfg.CarrierBaseURL, cfg.CarrierToken, cfg.CarrierTimeout),
		Notifier:         notifier,
		Indexer:          indexer,
		ReturnWindowDays: cfg.ReturnWindowDays,
		CarrierTimeout:   cfg.CarrierTimeout,
	})
	if err != nil {
		logger.Error("service_init_error", "error", err)
		os.Exit(1)
	}
	adminHandler.Svc = orderService

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: &httpserver.OrderHTTP{Svc: orderService},
		AdminHandler: adminHandler,
		WebhookHandler: &httpserver.WebhookHTTP{
			Svc: orderService,
			Verifiers: map[carrier.Family]carrier.Verifier{
				carrier.FamilyOrder:    carrier.NewSharedSecret(cfg.WebhookSecret),
				carrier.FamilyReturn:   carrier.NewSharedSecret(cfg.WebhookSecret),
				carrier.FamilyTracking: carrier.NewHMACSHA256(cfg.WebhookHMACSecret),
			},
		},
		JWTSecret: cfg.JWTAccessSecret,
		DB:        gdb,
	})

	port := strconv.Itoa(cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "port", port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("server_stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	if err := orderService.Wait(shutdownCtx); err != nil {
		logger.Error("publish_drain_error", "error", err)
	}

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}

	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}

	logger.Info("server_stopped")
}
