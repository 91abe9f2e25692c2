package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/model"
	"github.com/tigerpop/marketplace/internal/queue"
	"github.com/tigerpop/marketplace/internal/repository"
	"github.com/tigerpop/marketplace/internal/service"
)

// ListingHandler serves the listing CRUD and browse endpoints.
type ListingHandler struct {
	Listings *repository.ListingRepo
	Users    *repository.UserRepo
	Notify   *service.Notifier
}

func NewListingHandler(l *repository.ListingRepo, u *repository.UserRepo, n *service.Notifier) *ListingHandler {
	return &ListingHandler{Listings: l, Users: u, Notify: n}
}

// ----- DTOs -----

type listingReq struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Category      string    `json:"category"`
	Condition     string    `json:"condition"`
	PricingMode   string    `json:"pricing_mode"`
	StartingPrice *float64  `json:"starting_price"`
	BiddingEndsAt *string   `json:"bidding_ends_at"` // RFC 3339
	Images        *[]string `json:"images"`
}

func (req *listingReq) validate() (string, bool) {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	req.Condition = strings.TrimSpace(req.Condition)
	if req.Title == "" {
		return "title required", false
	}
	if req.Price <= 0 {
		return "price must be positive", false
	}
	if req.Category == "" {
		return "category required", false
	}
	if req.Condition == "" {
		return "condition required", false
	}
	switch req.PricingMode {
	case "", model.PricingFixed:
		req.PricingMode = model.PricingFixed
	case model.PricingAuction:
		if req.StartingPrice != nil && *req.StartingPrice <= 0 {
			return "starting_price must be positive", false
		}
	default:
		return "pricing_mode must be fixed or auction", false
	}
	return "", true
}

func parseBidEnd(raw *string) (*time.Time, string) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, ""
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, "bidding_ends_at must be RFC 3339"
	}
	utc := t.UTC()
	return &utc, ""
}

func imageModels(urls []string) []model.ListingImage {
	out := make([]model.ListingImage, 0, len(urls))
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, model.ListingImage{URL: u, Ordinal: uint32(i)})
	}
	return out
}

// List returns listings matching the query filters.  All filters are
// optional and combine with AND; condition may repeat.  Search splits
// on whitespace and every term must match title or description.
func (h *ListingHandler) List(c echo.Context) error {
	f := repository.ListingFilter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Status:   strings.TrimSpace(c.QueryParam("status")),
		Search:   strings.TrimSpace(c.QueryParam("search")),
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid max_price"})
		}
		f.MaxPrice = &v
	}
	if f.Status != "" && !model.ValidStatus(f.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	for _, cond := range c.QueryParams()["condition"] {
		if cond = strings.TrimSpace(cond); cond != "" {
			f.Conditions = append(f.Conditions, cond)
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rows, err := h.Listings.List(ctx, f)
	if err != nil {
		return repoError(c, err, "list listings failed")
	}
	return c.JSON(http.StatusOK, toListingResponses(rows))
}

// Get returns one listing by ID.
func (h *ListingHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	row, err := h.Listings.GetByID(ctx, id)
	if err != nil {
		return repoError(c, err, "load listing failed")
	}
	return c.JSON(http.StatusOK, toListingResponse(row))
}

// MyListings returns the authenticated seller's own listings, any status.
func (h *ListingHandler) MyListings(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rows, err := h.Listings.List(ctx, repository.ListingFilter{SellerID: uid})
	if err != nil {
		return repoError(c, err, "list listings failed")
	}
	return c.JSON(http.StatusOK, toListingResponses(rows))
}

// Create inserts a new listing owned by the caller.
func (h *ListingHandler) Create(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg, ok := req.validate(); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	bidEnd, msg := parseBidEnd(req.BiddingEndsAt)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	var imgs []string
	if req.Images != nil {
		imgs = *req.Images
	}
	l := &model.Listing{
		SellerID:      uid,
		Title:         req.Title,
		Description:   strings.TrimSpace(req.Description),
		Price:         req.Price,
		Category:      req.Category,
		Condition:     req.Condition,
		Status:        model.StatusAvailable,
		PricingMode:   req.PricingMode,
		StartingPrice: req.StartingPrice,
		BiddingEndsAt: bidEnd,
		Images:        imageModels(imgs),
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	row, err := h.Listings.Create(ctx, l)
	if err != nil {
		return repoError(c, err, "create listing failed")
	}
	return c.JSON(http.StatusCreated, toListingResponse(row))
}

// Update applies an edit to an owned listing.  Images are replaced
// wholesale only when the body carries an images field; an omitted
// field leaves the stored set alone.  The same rule applies to
// bidding_ends_at, where an empty string clears the deadline.
func (h *ListingHandler) Update(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg, ok := req.validate(); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	bidEnd, msg := parseBidEnd(req.BiddingEndsAt)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	desc := strings.TrimSpace(req.Description)
	patch := repository.UpdatePatch{
		Title:         &req.Title,
		Description:   &desc,
		Price:         &req.Price,
		Category:      &req.Category,
		Condition:     &req.Condition,
		PricingMode:   &req.PricingMode,
		StartingPrice: req.StartingPrice,
	}
	if req.BiddingEndsAt != nil {
		patch.BiddingEndsAt = bidEnd
		patch.ClearBidEnd = bidEnd == nil
	}
	if req.Images != nil {
		patch.Images = imageModels(*req.Images)
		patch.ReplaceImages = true
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	row, err := h.Listings.Update(ctx, id, uid, patch)
	if err != nil {
		return repoError(c, err, "update listing failed")
	}
	return c.JSON(http.StatusOK, toListingResponse(row))
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves a listing through its lifecycle.  Illegal moves
// are rejected with 400.
func (h *ListingHandler) UpdateStatus(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !model.ValidStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	row, err := h.Listings.UpdateStatus(ctx, id, uid, req.Status)
	if err != nil {
		return repoError(c, err, "update status failed")
	}
	return c.JSON(http.StatusOK, toListingResponse(row))
}

// Delete removes an owned listing.  Images, bids and hearts go with it.
func (h *ListingHandler) Delete(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Listings.Delete(ctx, id, uid); err != nil {
		return repoError(c, err, "delete listing failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type requestReq struct {
	Message string `json:"message"`
	Contact string `json:"contact"`
}

// Request lets a buyer claim an available listing.  The listing moves
// to pending under a row lock and the seller is notified with the
// buyer's message and contact details.
func (h *ListingHandler) Request(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req requestReq
	_ = c.Bind(&req)

	ctx, cancel := reqCtx(c)
	defer cancel()

	buyer, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return repoError(c, err, "load user failed")
	}

	pr, err := h.Listings.RequestToBuy(ctx, id, buyer, strings.TrimSpace(req.Message), strings.TrimSpace(req.Contact))
	if err != nil {
		return repoError(c, err, "purchase request failed")
	}

	h.Notify.Notify(c.Request().Context(), queue.NotificationEvent{
		Type:         queue.EventPurchaseRequest,
		ToEmail:      pr.SellerEmail,
		ListingID:    pr.Listing.Listing.ID,
		ListingTitle: pr.Listing.Listing.Title,
		FromNetID:    pr.BuyerNetID,
		Message:      strings.TrimSpace(req.Message),
		Contact:      strings.TrimSpace(req.Contact),
	})

	return c.JSON(http.StatusOK, toListingResponse(pr.Listing))
}
