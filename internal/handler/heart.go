package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/config"
	"github.com/tigerpop/marketplace/internal/queue"
	"github.com/tigerpop/marketplace/internal/repository"
	"github.com/tigerpop/marketplace/internal/service"
)

// HeartHandler serves favorites and the hot-items ranking.
type HeartHandler struct {
	Cfg      config.Config
	Hearts   *repository.HeartRepo
	Listings *repository.ListingRepo
	Users    *repository.UserRepo
	Notify   *service.Notifier
}

func NewHeartHandler(cfg config.Config, h *repository.HeartRepo, l *repository.ListingRepo, u *repository.UserRepo, n *service.Notifier) *HeartHandler {
	return &HeartHandler{Cfg: cfg, Hearts: h, Listings: l, Users: u, Notify: n}
}

// Heart favorites a listing.  Hearting twice is a no-op, not an error.
// The first heart from a user notifies the seller of new interest.
func (h *HeartHandler) Heart(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	listingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	created, err := h.Hearts.Heart(ctx, uid, listingID)
	if err != nil {
		return repoError(c, err, "heart failed")
	}

	if created {
		if row, err := h.Listings.GetByID(ctx, listingID); err == nil && row.Listing.SellerID != uid {
			if seller, err := h.Users.GetByID(ctx, row.Listing.SellerID); err == nil {
				h.Notify.Notify(c.Request().Context(), queue.NotificationEvent{
					Type:         queue.EventNewInterest,
					ToEmail:      seller.Email,
					ToNetID:      seller.NetID,
					ListingID:    row.Listing.ID,
					ListingTitle: row.Listing.Title,
					FromNetID:    currentNetID(c),
				})
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"hearted": true})
}

// Unheart removes a favorite.  404 when the heart does not exist.
func (h *HeartHandler) Unheart(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	listingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Hearts.Unheart(ctx, uid, listingID); err != nil {
		return repoError(c, err, "unheart failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Hearted returns the caller's favorited listings, most recently
// hearted first.
func (h *HeartHandler) Hearted(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rows, err := h.Hearts.ListHearted(ctx, uid)
	if err != nil {
		return repoError(c, err, "list hearted failed")
	}
	return c.JSON(http.StatusOK, toListingResponses(rows))
}

// Hot ranks available listings by hearts received in the trailing
// window, padding with fresh zero-heart listings when few hearts were
// given.  The result is a good candidate for the response cache.
func (h *HeartHandler) Hot(c echo.Context) error {
	limit := h.Cfg.HotLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 50 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = v
	}
	window := time.Duration(h.Cfg.HotWindowDays) * 24 * time.Hour

	ctx, cancel := reqCtx(c)
	defer cancel()

	rows, err := h.Hearts.HotItems(ctx, window, limit)
	if err != nil {
		return repoError(c, err, "hot items failed")
	}
	out := make([]listingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, withHearts(r))
	}
	return c.JSON(http.StatusOK, out)
}
