package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/mailer"
)

// ContactHandler forwards contact-us messages to the site admin's
// mailbox. The endpoint is public and sits behind the rate limiter.
type ContactHandler struct {
	Mail *mailer.Mailer
}

func NewContactHandler(m *mailer.Mailer) *ContactHandler {
	return &ContactHandler{Mail: m}
}

type contactBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Send handles POST /v1/contact-us.
func (h *ContactHandler) Send(c echo.Context) error {
	var body contactBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	body.Subject = strings.TrimSpace(body.Subject)
	body.Message = strings.TrimSpace(body.Message)
	if body.Name == "" || body.Email == "" || body.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, email and message are required"})
	}
	if !strings.Contains(body.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email address"})
	}
	if body.Subject == "" {
		body.Subject = "New contact message"
	}
	if err := h.Mail.SendContactMessage(c.Request().Context(), body.Name, body.Email, body.Subject, body.Message); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not deliver message"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "thanks, we will get back to you soon"})
}
