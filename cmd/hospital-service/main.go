package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wardflow/wardflow-backend/internal/inventory/consumers"
	"github.com/wardflow/wardflow-backend/internal/inventory/events"
	inventoryhandler "github.com/wardflow/wardflow-backend/internal/inventory/handler"
	inventoryrepo "github.com/wardflow/wardflow-backend/internal/inventory/repository"
	inventoryservice "github.com/wardflow/wardflow-backend/internal/inventory/service"
	settingshandler "github.com/wardflow/wardflow-backend/internal/settings/handler"
	settingsrepo "github.com/wardflow/wardflow-backend/internal/settings/repository"
	staffhandler "github.com/wardflow/wardflow-backend/internal/staff/handler"
	staffrepo "github.com/wardflow/wardflow-backend/internal/staff/repository"
	staffservice "github.com/wardflow/wardflow-backend/internal/staff/service"
	"github.com/wardflow/wardflow-backend/pkg/auth"
	"github.com/wardflow/wardflow-backend/pkg/config"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("hospital-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("hospital-service", cfg.Server.Environment)
	log.Info().Msg("starting Hospital Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	staffPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStaffEvents, "hospital-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create staff event publisher")
	}

	// Repositories
	itemRepo := inventoryrepo.NewItemRepository(db)
	categoryRepo := inventoryrepo.NewCategoryRepository(db)
	batchRepo := inventoryrepo.NewBatchRepository(db)
	txRepo := inventoryrepo.NewTransactionRepository(db)
	alertRepo := inventoryrepo.NewAlertRepository(db)
	userCacheRepo := inventoryrepo.NewUserCacheRepository(db)
	staffRepo := staffrepo.NewStaffRepository(db)
	settingsRepo := settingsrepo.NewSettingsRepository(db)

	// Services
	inventoryService := inventoryservice.NewInventoryService(
		db, itemRepo, categoryRepo, batchRepo, txRepo, alertRepo,
		userCacheRepo, settingsRepo, publisher, log,
	)
	inventoryService.Configure(&cfg.Inventory)
	staffService := staffservice.NewStaffService(staffRepo, staffPublisher, log)

	// Handlers
	itemHandler := inventoryhandler.NewItemHandler(inventoryService, log)
	categoryHandler := inventoryhandler.NewCategoryHandler(inventoryService, log)
	stockHandler := inventoryhandler.NewStockHandler(inventoryService, log)
	batchHandler := inventoryhandler.NewBatchHandler(inventoryService, log)
	transactionHandler := inventoryhandler.NewTransactionHandler(inventoryService, log)
	alertHandler := inventoryhandler.NewAlertHandler(inventoryService, log)
	dashboardHandler := inventoryhandler.NewDashboardHandler(inventoryService, log)
	importHandler := inventoryhandler.NewImportHandler(inventoryService, &cfg.Inventory, log)
	exportHandler := inventoryhandler.NewExportHandler(inventoryService, log)
	staffHandler := staffhandler.NewStaffHandler(staffService, log)
	settingsHandler := settingshandler.NewSettingsHandler(settingsRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// User event consumer keeps the actor directory current
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}
	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Background alert scanner
	scanner := inventoryservice.NewAlertScanner(itemRepo, batchRepo, alertRepo, settingsRepo, publisher, log)
	interval := cfg.Inventory.AlertInterval
	if interval <= 0 {
		interval = time.Hour
	}
	scheduler := inventoryservice.NewAlertScheduler(scanner, db, interval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	jwtManager := auth.NewManager(&cfg.JWT)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Auth(jwtManager))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "hospital-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.RequireTenant)

		r.Route("/inventory", func(r chi.Router) {
			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemHandler.List)
				r.Post("/", itemHandler.Create)
				r.Post("/import", importHandler.Import)
				r.Get("/{id}", itemHandler.Get)
				r.Put("/{id}", itemHandler.Update)
				r.Delete("/{id}", itemHandler.Delete)
				r.Post("/{id}/restore", itemHandler.Restore)
				r.Get("/{id}/batches", batchHandler.ListByItem)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", categoryHandler.List)
				r.Post("/", categoryHandler.Create)
				r.Get("/{id}", categoryHandler.Get)
				r.Put("/{id}", categoryHandler.Update)
				r.Delete("/{id}", categoryHandler.Delete)
				r.Post("/{id}/restore", categoryHandler.Restore)
			})

			r.Route("/stock", func(r chi.Router) {
				r.Post("/in", stockHandler.In)
				r.Post("/out", stockHandler.Out)
			})

			r.Route("/batches", func(r chi.Router) {
				r.Get("/expiry-alerts", batchHandler.ExpiryAlerts)
				r.Get("/{id}", batchHandler.Get)
				r.Post("/{id}/adjust", batchHandler.Adjust)
				r.Post("/{id}/expire", batchHandler.Expire)
			})

			r.Get("/transactions", transactionHandler.List)
			r.Get("/medications/search", itemHandler.Search)
			r.Get("/dashboard/stats", dashboardHandler.Stats)
			r.Get("/export/{dataset}", exportHandler.Export)

			r.Get("/alerts", alertHandler.List)
			r.Put("/alerts/{id}/acknowledge", alertHandler.Acknowledge)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", staffHandler.List)
			r.Post("/", staffHandler.Create)
			r.Get("/export", staffHandler.Export)
			r.Get("/{id}", staffHandler.Get)
			r.Put("/{id}", staffHandler.Update)
			r.Delete("/{id}", staffHandler.Delete)
			r.Post("/{id}/restore", staffHandler.Restore)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop consumers and the scheduler
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
