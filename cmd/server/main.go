package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/config"
	"github.com/pearlevents/event-booking/internal/database"
	"github.com/pearlevents/event-booking/internal/handler"
	"github.com/pearlevents/event-booking/internal/mailer"
	"github.com/pearlevents/event-booking/internal/middleware"
	"github.com/pearlevents/event-booking/internal/queue"
	"github.com/pearlevents/event-booking/internal/repository"
	"github.com/pearlevents/event-booking/internal/reservation"
	"github.com/pearlevents/event-booking/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	bookings := repository.NewBookingRepo(db)

	// The reservation core is the only writer of tier stock and booking
	// rows; everything it does runs in one locked DB transaction.
	store := repository.NewReservationStore(db, tickets, bookings)
	reservations := reservation.NewService(store)

	mail := mailer.New(cfg.MailAPIKey, cfg.MailFromName, cfg.MailFromEmail, cfg.AdminEmail)

	// Background consumer for booking.created: sends the confirmation
	// and admin notification emails. Runs its own reconnect loop.
	go func() {
		if err := queue.StartBookingConsumer(mail); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()

	e := echo.New()

	// Redis-backed rate limiting and response caching apply to every
	// route; both middlewares fail open when Redis is unreachable.
	rdb := config.NewRedisClient()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	h := router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, users, tokens, mail),
		Users:   handler.NewUserHandler(cfg, users, tokens),
		Events:  handler.NewEventHandler(events, tickets),
		Tickets: handler.NewTicketHandler(events, tickets),
		Booking: handler.NewBookingHandler(reservations, bookings),
		Contact: handler.NewContactHandler(mail),
	}

	router.RegisterRoutes(e)
	router.RegisterPublic(e, h)
	router.RegisterAuth(e, h, cfg.JWTSecret)
	router.RegisterBookings(e, h, cfg.JWTSecret)
	router.RegisterAdmin(e, h, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
