package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/repository"
)

// dbTimeout bounds every repository call made from a handler.
const dbTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// currentUser returns the authenticated user's ID from the JWT claims
// stored by the auth middleware.  The jwt library decodes numeric
// claims as float64.
func currentUser(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

func currentNetID(c echo.Context) string {
	if s, ok := c.Get("netid").(string); ok {
		return s
	}
	return ""
}

// pathID parses the :id path segment.
func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// repoError translates repository sentinel errors into JSON responses.
// Unknown errors become an opaque 500.
func repoError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status transition"})
	case errors.Is(err, repository.ErrNotAuction):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing is not an auction"})
	case errors.Is(err, repository.ErrBiddingClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "bidding is closed"})
	case errors.Is(err, repository.ErrBidTooLow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bid too low"})
	case errors.Is(err, repository.ErrSelfBid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot act on your own listing"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
	}
}
