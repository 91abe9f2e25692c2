package handler

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerpop/marketplace/internal/repository"
)

func TestListingReqValidation(t *testing.T) {
	neg := -5.0
	cases := []struct {
		name string
		req  listingReq
		ok   bool
		msg  string
	}{
		{
			name: "valid fixed",
			req:  listingReq{Title: "Lamp", Price: 10, Category: "furniture", Condition: "good"},
			ok:   true,
		},
		{
			name: "missing title",
			req:  listingReq{Price: 10, Category: "furniture", Condition: "good"},
			msg:  "title required",
		},
		{
			name: "zero price",
			req:  listingReq{Title: "Lamp", Category: "furniture", Condition: "good"},
			msg:  "price must be positive",
		},
		{
			name: "missing category",
			req:  listingReq{Title: "Lamp", Price: 10, Condition: "good"},
			msg:  "category required",
		},
		{
			name: "unknown pricing mode",
			req:  listingReq{Title: "Lamp", Price: 10, Category: "furniture", Condition: "good", PricingMode: "raffle"},
			msg:  "pricing_mode must be fixed or auction",
		},
		{
			name: "negative starting price",
			req:  listingReq{Title: "Lamp", Price: 10, Category: "furniture", Condition: "good", PricingMode: "auction", StartingPrice: &neg},
			msg:  "starting_price must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := tc.req.validate()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestValidateDefaultsPricingMode(t *testing.T) {
	req := listingReq{Title: " Lamp ", Price: 10, Category: "furniture", Condition: "good"}
	_, ok := req.validate()
	require.True(t, ok)
	assert.Equal(t, "fixed", req.PricingMode)
	assert.Equal(t, "Lamp", req.Title)
}

func TestParseBidEnd(t *testing.T) {
	raw := "2026-09-01T15:00:00-04:00"
	got, msg := parseBidEnd(&raw)
	require.Empty(t, msg)
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 19, got.Hour())

	bad := "tomorrow"
	got, msg = parseBidEnd(&bad)
	assert.Nil(t, got)
	assert.Equal(t, "bidding_ends_at must be RFC 3339", msg)

	got, msg = parseBidEnd(nil)
	assert.Nil(t, got)
	assert.Empty(t, msg)
}

func TestImageModelsSkipsBlanksKeepsOrder(t *testing.T) {
	out := imageModels([]string{"https://img/1.jpg", " ", "https://img/2.jpg"})
	require.Len(t, out, 2)
	assert.Equal(t, "https://img/1.jpg", out[0].URL)
	assert.Equal(t, "https://img/2.jpg", out[1].URL)
}

var updateListingCols = []string{
	"id", "seller_id", "buyer_id", "title", "description", "price",
	"category", "item_condition", "status", "pricing_mode",
	"starting_price", "bidding_ends_at", "buyer_message", "buyer_contact",
	"created_at", "updated_at", "current_bid",
}

func updateTestContext(t *testing.T, body string) (*ListingHandler, sqlmock.Sqlmock, echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/listings/5", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/listings/:id")
	c.SetParamNames("id")
	c.SetParamValues("5")
	c.Set("user_id", uint64(7))

	return NewListingHandler(repository.NewListingRepo(db), nil, nil), mock, c, rec
}

func expectUpdatedListingRead(mock sqlmock.Sqlmock) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM listings l WHERE l.id = ?")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(updateListingCols).
			AddRow(uint64(5), uint64(7), nil, "Lamp", "desc", 12.0,
				"furniture", "good", "available", "fixed",
				nil, nil, nil, nil, now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM listing_images")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "url", "ordinal", "created_at"}))
}

func TestUpdateOmittedImagesKeepsStoredSet(t *testing.T) {
	body := `{"title":"Lamp","description":"desc","price":12,"category":"furniture","condition":"good"}`
	h, mock, c, rec := updateTestContext(t, body)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seller_id FROM listings WHERE id=? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"seller_id"}).AddRow(uint64(7)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE listings SET title=?, description=?, price=?, category=?, item_condition=?, pricing_mode=? WHERE id=?")).
		WithArgs("Lamp", "desc", 12.0, "furniture", "good", "fixed", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectUpdatedListingRead(mock)

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSuppliedImagesReplaceWholesale(t *testing.T) {
	body := `{"title":"Lamp","description":"desc","price":12,"category":"furniture","condition":"good",` +
		`"bidding_ends_at":"","images":[]}`
	h, mock, c, rec := updateTestContext(t, body)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seller_id FROM listings WHERE id=? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"seller_id"}).AddRow(uint64(7)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE listings SET title=?, description=?, price=?, category=?, item_condition=?, pricing_mode=?, bidding_ends_at=NULL WHERE id=?")).
		WithArgs("Lamp", "desc", 12.0, "furniture", "good", "fixed", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM listing_images WHERE listing_id=?")).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	expectUpdatedListingRead(mock)

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
