package handler // handler defines http handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/model"
	"github.com/pearlevents/event-booking/internal/reservation"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// The JWT middleware stores claims as untyped values, so several
// representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the request carries the ADMIN role claim.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

// actorFromContext builds the reservation actor for the current request.
func actorFromContext(c echo.Context) (reservation.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return reservation.Actor{}, err
	}
	return reservation.Actor{UserID: uid, Admin: isAdmin(c)}, nil
}

// pathID parses a numeric path parameter, rejecting zero and garbage.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
