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
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-admission/internal/access/access_api"
	accessdb "ms-admission/internal/access/db"
	access "ms-admission/internal/access/service"
	"ms-admission/internal/auth"
	"ms-admission/internal/config"
	"ms-admission/internal/database/migrations"
	eventsdb "ms-admission/internal/events/db"
	"ms-admission/internal/events/event_api"
	events "ms-admission/internal/events/service"
	"ms-admission/internal/kafka"
	"ms-admission/internal/logger"
	"ms-admission/internal/mailer"
	"ms-admission/internal/qr"
	reservationsdb "ms-admission/internal/reservations/db"
	"ms-admission/internal/reservations/reservation_api"
	reservations "ms-admission/internal/reservations/service"
)

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.Info("DATABASE", "Postgres connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	if os.Getenv("AUTO_MIGRATE") != "false" {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
	}

	// Redis is an optimization (token cache); run without it if unreachable.
	var tokenCache *auth.TokenCache
	if cfg.Redis.Enabled {
		redisClient, err := auth.InitializeTokenCache(cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("AUTH", fmt.Sprintf("Token cache disabled: %v", err))
		} else {
			defer redisClient.Close()
			tokenCache = auth.NewTokenCache(redisClient, cfg.Auth.TokenCacheTTL)
		}
	}

	authMiddleware, err := auth.NewMiddleware(cfg.Auth, tokenCache, log)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to set up auth middleware: %v", err))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.ScanTopic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ScanTopic, log)
		defer producer.Close()
	}

	mail := mailer.New(cfg.Email, log)
	qrGen := qr.NewGenerator()

	eventStore := &eventsdb.DB{Bun: bunDB}
	reservationStore := &reservationsdb.DB{Bun: bunDB}
	accessStore := &accessdb.DB{Bun: bunDB}

	eventService := events.NewEventService(eventStore, cfg.Admission, log)
	reservationService := reservations.NewReservationService(reservationStore, eventStore, cfg.Admission, mail, scanPublisher(producer), log)
	accessService := access.NewAccessService(accessStore, eventStore, cfg.Admission, scanPublisher(producer), log)

	eventHandler := event_api.NewHandler(eventService, qrGen, log)
	reservationHandler := reservation_api.NewHandler(reservationService, log)
	accessHandler := access_api.NewHandler(accessService, log)

	adminOnly := authMiddleware.RequireRoles(auth.RoleAdmin)
	doorStaff := authMiddleware.RequireRoles(auth.RoleSecurity, auth.RoleAdmin)

	r := chi.NewRouter()
	r.Route("/api/events", func(r chi.Router) {
		r.Get("/", eventHandler.ListEvents)
		r.Get("/{eventID}", eventHandler.GetEvent)
		r.Get("/public/{publicCode}", eventHandler.GetEventByPublicCode)
		r.Get("/{eventID}/qr", eventHandler.EventQR)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", eventHandler.CreateEvent)
			r.Put("/{eventID}", eventHandler.UpdateEvent)
			r.Patch("/{eventID}", eventHandler.UpdateEvent)
			r.Delete("/{eventID}", eventHandler.DeleteEvent)

			r.Get("/{eventID}/access-codes", accessHandler.ListByEvent)
			r.Post("/{eventID}/access-codes", accessHandler.Create)
			r.Patch("/{eventID}/access-codes/{accessID}", accessHandler.SetEnabled)
			r.Get("/{eventID}/access-codes/{accessID}/qr", accessHandler.AccessQR)
		})
	})

	r.Route("/api/reservations", func(r chi.Router) {
		r.Post("/public/{publicCode}", reservationHandler.CreatePublicReservation)
		r.Get("/{reservationID}/qr", reservationHandler.ReservationQR)

		r.Group(func(r chi.Router) {
			r.Use(doorStaff)
			r.Post("/checkin/{reservationCode}", reservationHandler.Checkin)
			r.Get("/event/{eventID}", reservationHandler.ListByEvent)
		})
	})

	r.Route("/api/access-codes", func(r chi.Router) {
		r.Use(doorStaff)
		r.Post("/check/{accessCode}", accessHandler.Check)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("🚀 Admission service on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "✅ Admission service shutdown complete")
}

// scanPublisher avoids handing a typed nil to the services when Kafka is
// disabled.
func scanPublisher(p *kafka.Producer) reservations.ScanPublisher {
	if p == nil {
		return nil
	}
	return p
}
