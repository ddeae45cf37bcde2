package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/config"
	"github.com/pearlevents/event-booking/internal/repository"
	"github.com/pearlevents/event-booking/internal/utils"
)

// UserHandler serves profile management for the authenticated user and
// user administration for admins.
type UserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo, tokens *repository.TokenRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users, Tokens: tokens}
}

type profileBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateProfile handles PUT /v1/me.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body profileBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	if body.Name == "" || body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.UpdateProfile(ctx, uid, body.Name, body.Email); err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

type changePasswordBody struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles PUT /v1/me/password. The current password is
// re-verified even though the request already carries a valid access
// token.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body changePasswordBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if body.CurrentPassword == "" || len(body.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, body.CurrentPassword) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "current password is wrong"})
	}
	if err := h.Users.UpdatePassword(ctx, uid, body.NewPassword, h.Cfg.BcryptCost); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	// A password change invalidates every open session.
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		log.Printf("user %d: revoking sessions after password change failed: %v", uid, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/users (admin).
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// Get handles GET /v1/users/:id (admin).
func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}
