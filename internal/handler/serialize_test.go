package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerpop/marketplace/internal/model"
	"github.com/tigerpop/marketplace/internal/repository"
)

func sampleRow() repository.ListingRow {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	start := 10.0
	bid := 17.5
	return repository.ListingRow{
		Listing: model.Listing{
			ID:            3,
			SellerID:      1,
			Title:         "Dorm lamp",
			Description:   "Barely used",
			Price:         20,
			Category:      "furniture",
			Condition:     "good",
			Status:        model.StatusAvailable,
			PricingMode:   model.PricingAuction,
			StartingPrice: &start,
			Images: []model.ListingImage{
				{URL: "https://img/1.jpg", Ordinal: 0},
				{URL: "https://img/2.jpg", Ordinal: 1},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		CurrentBid: &bid,
	}
}

func TestListingResponseShape(t *testing.T) {
	resp := toListingResponse(sampleRow())

	assert.Equal(t, uint64(3), resp.ID)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, resp.Images)
	require.NotNil(t, resp.CurrentBid)
	assert.Equal(t, 17.5, *resp.CurrentBid)
	assert.Nil(t, resp.HeartCount)
	assert.Nil(t, resp.BuyerID)
}

func TestListingResponseOmitsEmptyOptionals(t *testing.T) {
	row := sampleRow()
	row.Listing.PricingMode = model.PricingFixed
	row.Listing.StartingPrice = nil
	row.CurrentBid = nil
	row.Listing.Images = nil

	raw, err := json.Marshal(toListingResponse(row))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.NotContains(t, m, "current_bid")
	assert.NotContains(t, m, "starting_price")
	assert.NotContains(t, m, "heart_count")
	assert.NotContains(t, m, "buyer_id")
	// images stays present as an empty array, never null
	assert.Contains(t, m, "images")
	assert.Equal(t, []any{}, m["images"])
}

func TestWithHeartsExposesCount(t *testing.T) {
	row := sampleRow()
	row.HeartCount = 7

	resp := withHearts(row)
	require.NotNil(t, resp.HeartCount)
	assert.Equal(t, int64(7), *resp.HeartCount)
}

func TestToListingResponsesPreservesOrder(t *testing.T) {
	a := sampleRow()
	b := sampleRow()
	b.Listing.ID = 9
	b.Listing.Title = "Mini fridge"

	out := toListingResponses([]repository.ListingRow{a, b})
	require.Len(t, out, 2)
	assert.Equal(t, uint64(3), out[0].ID)
	assert.Equal(t, uint64(9), out[1].ID)
}
