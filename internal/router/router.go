package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/handler"
	"github.com/pearlevents/event-booking/internal/middleware"
	"github.com/pearlevents/event-booking/internal/model"
)

// Handlers bundles every handler the router wires up. All fields are
// required except Contact, which may be nil when no mail key is set.
type Handlers struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Events  *handler.EventHandler
	Tickets *handler.TicketHandler
	Booking *handler.BookingHandler
	Contact *handler.ContactHandler
}

// RegisterRoutes registers routes that do not require authentication.
// The health check is used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints. Guests
// can list and search events and inspect tier availability without an
// account; booking requires login.
func RegisterPublic(e *echo.Echo, h Handlers) {
	e.GET("/v1/events", h.Events.List)
	e.GET("/v1/events/:id", h.Events.Get)
	e.GET("/v1/events/:id/tickets", h.Tickets.List)
	if h.Contact != nil {
		e.POST("/v1/contact-us", h.Contact.Send)
	}
}

// RegisterAuth registers the authentication endpoints. Register, login
// and refresh live under /v1/auth and need no session; /v1/me requires
// a valid access token.
func RegisterAuth(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	// Logout takes the refresh token in the body, so it works without a
	// (possibly already expired) access token.
	g.POST("/logout", h.Auth.Logout)

	me := e.Group("/v1/me")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.Use(middleware.RequireRole(model.RoleAdmin, model.RoleClient))
	me.GET("", h.Auth.Me)
	me.PUT("", h.Users.UpdateProfile)
	me.PUT("/password", h.Users.ChangePassword)
}

// RegisterBookings registers the booking endpoints. Any authenticated
// user may book; ownership checks inside the handlers and the
// reservation core decide who may view, change or cancel a booking.
func RegisterBookings(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleClient))
	g.GET("", h.Booking.List)
	g.POST("", h.Booking.Create)
	// Static paths before the :id wildcard.
	g.GET("/upcoming", h.Booking.Upcoming)
	g.GET("/past", h.Booking.Past)
	g.GET("/statistics", h.Booking.Statistics)
	g.GET("/:id", h.Booking.Get)
	g.PUT("/:id", h.Booking.Update)
	g.DELETE("/:id", h.Booking.Delete)
}

// RegisterAdmin registers the management endpoints: event and tier
// CRUD plus user administration. All routes require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.POST("/events", h.Events.Create)
	g.PUT("/events/:id", h.Events.Update)
	g.DELETE("/events/:id", h.Events.Delete)
	g.POST("/events/:id/pictures", h.Events.AddPicture)
	g.DELETE("/events/:id/pictures", h.Events.RemovePicture)

	g.POST("/events/:id/tickets", h.Tickets.Create)
	g.PUT("/events/:id/tickets/:ticketID", h.Tickets.Update)
	g.DELETE("/events/:id/tickets/:ticketID", h.Tickets.Delete)

	g.GET("/users", h.Users.List)
	g.GET("/users/:id", h.Users.Get)
	g.GET("/users/:id/bookings", h.Booking.ListForUser)
}
