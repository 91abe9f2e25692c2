package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/model"
	"github.com/tigerpop/marketplace/internal/queue"
	"github.com/tigerpop/marketplace/internal/repository"
	"github.com/tigerpop/marketplace/internal/service"
)

// BidHandler serves auction endpoints: placing bids, listing them and
// closing bidding.
type BidHandler struct {
	Bids   *repository.BidRepo
	Users  *repository.UserRepo
	Notify *service.Notifier
}

func NewBidHandler(b *repository.BidRepo, u *repository.UserRepo, n *service.Notifier) *BidHandler {
	return &BidHandler{Bids: b, Users: u, Notify: n}
}

type bidReq struct {
	Amount float64 `json:"amount"`
}

type bidResp struct {
	ID        uint64    `json:"id"`
	ListingID uint64    `json:"listing_id"`
	BidderID  uint64    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func toBidResp(b model.Bid) bidResp {
	return bidResp{ID: b.ID, ListingID: b.ListingID, BidderID: b.BidderID, Amount: b.Amount, CreatedAt: b.CreatedAt}
}

// Place records a bid on an auction listing.  The amount must strictly
// exceed the current highest bid, or the starting price when no bids
// exist yet.  On success the seller is notified and the previous
// highest bidder, if any, gets an outbid notice.
func (h *BidHandler) Place(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	listingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req bidReq
	if err := c.Bind(&req); err != nil || req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "positive amount required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	placed, err := h.Bids.Place(ctx, listingID, uid, req.Amount)
	if err != nil {
		return repoError(c, err, "place bid failed")
	}

	// Notifications are best effort and never fail the committed bid.
	if seller, err := h.Users.GetByID(ctx, placed.SellerID); err == nil {
		h.Notify.Notify(c.Request().Context(), queue.NotificationEvent{
			Type:         queue.EventNewBid,
			ToEmail:      seller.Email,
			ToNetID:      seller.NetID,
			ListingID:    placed.Bid.ListingID,
			ListingTitle: placed.ListingTitle,
			Amount:       placed.Bid.Amount,
			FromNetID:    currentNetID(c),
		})
	}
	if placed.PrevBidderID != nil {
		if prev, err := h.Users.GetByID(ctx, *placed.PrevBidderID); err == nil {
			h.Notify.Notify(c.Request().Context(), queue.NotificationEvent{
				Type:         queue.EventOutbid,
				ToEmail:      prev.Email,
				ToNetID:      prev.NetID,
				ListingID:    placed.Bid.ListingID,
				ListingTitle: placed.ListingTitle,
				Amount:       placed.Bid.Amount,
			})
		}
	}

	return c.JSON(http.StatusCreated, toBidResp(placed.Bid))
}

// List returns a listing's bids, highest first.
func (h *BidHandler) List(c echo.Context) error {
	listingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	bids, err := h.Bids.ListByListing(ctx, listingID)
	if err != nil {
		return repoError(c, err, "list bids failed")
	}
	out := make([]bidResp, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResp(b))
	}
	return c.JSON(http.StatusOK, out)
}

// Close ends bidding on the caller's auction listing.  With bids the
// highest bidder wins and is notified; without bids the listing closes.
func (h *BidHandler) Close(c echo.Context) error {
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

	closed, err := h.Bids.Close(ctx, listingID, uid)
	if err != nil {
		return repoError(c, err, "close bidding failed")
	}

	if closed.WinnerID != 0 {
		if winner, err := h.Users.GetByID(ctx, closed.WinnerID); err == nil {
			h.Notify.Notify(c.Request().Context(), queue.NotificationEvent{
				Type:         queue.EventAuctionWon,
				ToEmail:      winner.Email,
				ToNetID:      winner.NetID,
				ListingID:    closed.ListingID,
				ListingTitle: closed.ListingTitle,
				Amount:       closed.WinningAmount,
			})
		}
	}

	resp := echo.Map{"listing_id": closed.ListingID, "status": closed.Status}
	if closed.WinnerID != 0 {
		resp["winner_id"] = closed.WinnerID
		resp["winning_amount"] = closed.WinningAmount
	}
	return c.JSON(http.StatusOK, resp)
}
