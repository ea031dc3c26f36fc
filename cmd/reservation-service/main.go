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
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"bus-reservation/internal/auth"
	"bus-reservation/internal/config"
	"bus-reservation/internal/database/migrations"
	"bus-reservation/internal/kafka"
	"bus-reservation/internal/logger"
	"bus-reservation/internal/models"
	"bus-reservation/internal/reservation"
	reservation_api "bus-reservation/internal/reservation/api"
	reservation_db "bus-reservation/internal/reservation/db"
	"bus-reservation/internal/reservation/qr"
	rediswrap "bus-reservation/internal/reservation/redis"
	"bus-reservation/internal/trips"
	trips_api "bus-reservation/internal/trips/api"
	trips_db "bus-reservation/internal/trips/db"
)

// noopPublisher stands in for Kafka when event streaming is disabled.
type noopPublisher struct{}

func (noopPublisher) PublishReservationCreated(models.Reservation) error   { return nil }
func (noopPublisher) PublishReservationCancelled(models.Reservation) error { return nil }
func (noopPublisher) PublishSeatStatus(string, []string, string) error     { return nil }

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
		sqldb = sql.OpenDB(connector)

		if err = sqldb.Ping(); err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Reservation Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.LogDatabase("MIGRATE", "schema_migrations", "all pending migrations applied")
	}

	if cfg.Database.DevSeed {
		reservation_db.Migrate(bunDB)
		log.LogDatabase("SEED", "routes", "development seed data loaded")
	}

	redisClient := connectRedis(ctx, cfg, log)
	defer redisClient.Close()

	var publisher reservation.Publisher = noopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.Topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		for _, topic := range kafka.Topics {
			log.LogKafka("INIT", topic, "topic ready")
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = producer
	} else {
		log.Warn("KAFKA", "Event streaming disabled, reservation events will not be published")
	}

	seatLock := rediswrap.NewSeatLock(redisClient)
	seatLock.TTL = cfg.Redis.SeatLockTTL

	reservationService := reservation.NewService(
		&reservation_db.DB{Bun: bunDB},
		seatLock,
		publisher,
		qr.NewQRGenerator(cfg.Auth.QRSecret),
		log,
	)
	tripService := trips.NewTripService(&trips_db.DB{Bun: bunDB}, seatLock, log)

	reservationHandler := reservation_api.NewHandler(reservationService, log)
	tripHandler := trips_api.NewHandler(tripService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Public Routes ---
	r.Get("/api/trips/search", tripHandler.SearchTrips)
	r.Get("/api/trips/{tripId}/seats", tripHandler.GetTripSeats)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))

		r.Route("/api/reservations", func(r chi.Router) {
			r.Post("/", reservationHandler.CreateReservation)
			r.Get("/my", reservationHandler.GetUserReservations)
			r.Delete("/{reservationId}", reservationHandler.CancelReservation)
		})
		r.Post("/api/admin/trips/{tripId}/reconcile", reservationHandler.ReconcileTrip)
	})
	log.Info("ROUTER", "Routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Reservation Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Reservation Service shutdown complete")
	}
}
