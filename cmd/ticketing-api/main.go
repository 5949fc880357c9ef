package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/jotalevi/TheFirm/internal/auth"
	"github.com/jotalevi/TheFirm/internal/cache"
	"github.com/jotalevi/TheFirm/internal/config"
	"github.com/jotalevi/TheFirm/internal/coupon"
	"github.com/jotalevi/TheFirm/internal/database/migrations"
	"github.com/jotalevi/TheFirm/internal/inventory"
	"github.com/jotalevi/TheFirm/internal/logger"
	"github.com/jotalevi/TheFirm/internal/notify"
	"github.com/jotalevi/TheFirm/internal/order"
	orderapi "github.com/jotalevi/TheFirm/internal/order/api"
	orderdb "github.com/jotalevi/TheFirm/internal/order/db"
	orderkafka "github.com/jotalevi/TheFirm/internal/order/kafka"
	"github.com/jotalevi/TheFirm/internal/tickets"
	ticketdb "github.com/jotalevi/TheFirm/internal/tickets/db"
	"github.com/jotalevi/TheFirm/internal/tickets/qr"
	"github.com/jotalevi/TheFirm/internal/tickets/ticket_api"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
		AutoMigrate:   true,
	})
	if err := runner.Initialize(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize migrations: %v", err))
	}
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to apply migrations: %v", err))
	}
	log.Info("DATABASE", "Migrations applied")

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("CACHE", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	orderCache := cache.NewOrderCache(redisClient, cfg.Redis.OrderTTL)

	// --- Kafka ---
	var publisher order.OrderPublisher
	if cfg.Kafka.Enabled {
		producer := orderkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.LogKafka("INIT", cfg.Kafka.Topic, "producer ready")
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	// --- Services ---
	qrGen := qr.NewGenerator(cfg.Auth.QRSecret)
	mailer := notify.NewMailer(cfg.Email, log)

	orderStore := &orderdb.DB{Bun: bunDB}
	orderService := order.NewOrderService(
		orderStore,
		inventory.NewLedger(),
		coupon.NewEvaluator(),
		tickets.NewIssuer(qrGen),
		mailer,
		publisher,
		log,
	)
	orderHandler := orderapi.NewHandler(orderService, orderCache, log)

	ticketService := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, qrGen)
	ticketHandler := ticket_api.NewHandler(ticketService, log)

	// --- Router ---
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))

		r.Post("/orders", orderHandler.CreateOrder)
		r.Get("/orders/{orderId}", orderHandler.GetOrder)
		r.Get("/orders/{orderId}/tickets", ticketHandler.GetTicketsByOrder)
		r.Post("/validate/qr", ticketHandler.ValidateQR)
		r.Get("/tickets/user/{userRun}", ticketHandler.GetTicketsByUser)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Ticketing API listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("SERVER", "Server exited gracefully")
}
