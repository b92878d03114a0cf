package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 {
	return &v
}

func liveAuction() *Auction {
	return &Auction{
		ID:           "a1",
		SellerID:     "seller-1",
		Seller:       "bob",
		Item:         Item{Title: "Vintage camera", Description: "works"},
		ReservePrice: 50,
		BuyNowPrice:  price(200),
		Currency:     "EUR",
		Status:       AuctionLive,
		AuctionEnd:   time.Now().Add(24 * time.Hour),
		Version:      1,
	}
}

func TestApplyBidIsIdempotent(t *testing.T) {
	a := liveAuction()

	changed := a.ApplyBid(100, "u1", "alice")
	require.True(t, changed)
	require.NotNil(t, a.CurrentHighBid)
	assert.Equal(t, 100.0, *a.CurrentHighBid)
	assert.Equal(t, "alice", a.Winner)

	// Redelivery of the same event changes nothing.
	changed = a.ApplyBid(100, "u1", "alice")
	assert.False(t, changed)
	assert.Equal(t, 100.0, *a.CurrentHighBid)
}

func TestApplyBidIsMonotonic(t *testing.T) {
	a := liveAuction()

	amounts := []float64{100, 80, 150, 150, 120, 151}
	var prev float64
	for _, amount := range amounts {
		a.ApplyBid(amount, "u1", "alice")
		require.NotNil(t, a.CurrentHighBid)
		assert.GreaterOrEqual(t, *a.CurrentHighBid, prev)
		prev = *a.CurrentHighBid
	}
	assert.Equal(t, 151.0, prev)
}

func TestApplyRetractionTrustsUpstream(t *testing.T) {
	a := liveAuction()
	a.ApplyBid(150, "u1", "alice")

	// The ranking authority installs a lower top bid than stored.
	bidder := "u2"
	a.ApplyRetraction(price(120), &bidder, nil)
	require.NotNil(t, a.CurrentHighBid)
	assert.Equal(t, 120.0, *a.CurrentHighBid)
	assert.Equal(t, "u2", a.WinnerID)

	// All-nil payload means no bids remain.
	a.ApplyRetraction(nil, nil, nil)
	assert.Nil(t, a.CurrentHighBid)
	assert.Empty(t, a.WinnerID)
	assert.Empty(t, a.Winner)
}

func TestReserveForBuyNow(t *testing.T) {
	a := liveAuction()

	require.NoError(t, a.ReserveForBuyNow("u1", "alice"))
	assert.Equal(t, AuctionReservedForBuyNow, a.Status)

	// A second buyer hits the status guard.
	err := a.ReserveForBuyNow("u2", "carol")
	require.Error(t, err)
	assert.True(t, IsRuleError(err))
}

func TestReserveGuards(t *testing.T) {
	t.Run("no buy-now price", func(t *testing.T) {
		a := liveAuction()
		a.BuyNowPrice = nil
		err := a.ReserveForBuyNow("u1", "alice")
		assert.True(t, IsRuleError(err))
	})

	t.Run("not live", func(t *testing.T) {
		a := liveAuction()
		a.Status = AuctionScheduled
		err := a.ReserveForBuyNow("u1", "alice")
		assert.True(t, IsRuleError(err))
	})

	t.Run("self purchase", func(t *testing.T) {
		a := liveAuction()
		err := a.ReserveForBuyNow("seller-1", "bob")
		assert.True(t, IsRuleError(err))
	})
}

func TestReleaseReservationIsIdempotent(t *testing.T) {
	a := liveAuction()
	require.NoError(t, a.ReserveForBuyNow("u1", "alice"))

	assert.True(t, a.ReleaseReservation())
	assert.Equal(t, AuctionLive, a.Status)

	// Late or duplicate release is a no-op, not an error.
	assert.False(t, a.ReleaseReservation())
	assert.Equal(t, AuctionLive, a.Status)
}

func TestCompleteBuyNow(t *testing.T) {
	a := liveAuction()
	require.NoError(t, a.ReserveForBuyNow("u1", "alice"))

	require.NoError(t, a.CompleteBuyNow("u1", "alice"))
	assert.Equal(t, AuctionFinished, a.Status)
	assert.Equal(t, "u1", a.WinnerID)
	assert.Equal(t, "alice", a.Winner)
	require.NotNil(t, a.CurrentHighBid)
	assert.Equal(t, 200.0, *a.CurrentHighBid)

	// Completing without a reservation is refused.
	b := liveAuction()
	err := b.CompleteBuyNow("u1", "alice")
	assert.True(t, IsRuleError(err))
}

func TestActivateRequiresFutureEnd(t *testing.T) {
	a := liveAuction()
	a.Status = AuctionScheduled
	a.AuctionEnd = time.Now().Add(-time.Hour)

	err := a.Activate(time.Now())
	require.Error(t, err)
	assert.True(t, IsRuleError(err))
	assert.Equal(t, AuctionScheduled, a.Status)

	a.AuctionEnd = time.Now().Add(time.Hour)
	require.NoError(t, a.Activate(time.Now()))
	assert.Equal(t, AuctionLive, a.Status)
}

func TestDeactivate(t *testing.T) {
	a := liveAuction()
	require.NoError(t, a.Deactivate())
	assert.Equal(t, AuctionInactive, a.Status)

	err := a.Deactivate()
	assert.True(t, IsRuleError(err))
}

func TestCancel(t *testing.T) {
	a := liveAuction()
	require.NoError(t, a.Cancel("seller suspended"))
	assert.Equal(t, AuctionCancelled, a.Status)
	assert.Equal(t, "seller suspended", a.Item.Attributes["cancellation_reason"])

	// Cancelling again is idempotent.
	require.NoError(t, a.Cancel("seller suspended"))

	b := liveAuction()
	b.Status = AuctionFinished
	err := b.Cancel("too late")
	assert.True(t, IsRuleError(err))
}

func TestBuyNowAvailable(t *testing.T) {
	a := liveAuction()
	assert.True(t, a.BuyNowAvailable())

	a.Status = AuctionReservedForBuyNow
	assert.False(t, a.BuyNowAvailable())

	b := liveAuction()
	b.BuyNowPrice = nil
	assert.False(t, b.BuyNowAvailable())
}

func TestRename(t *testing.T) {
	a := liveAuction()
	a.WinnerID = "u1"
	a.Winner = "alice"

	assert.True(t, a.Rename("u1", "alice92"))
	assert.Equal(t, "alice92", a.Winner)
	assert.Equal(t, "bob", a.Seller)

	assert.True(t, a.Rename("seller-1", "bobby"))
	assert.Equal(t, "bobby", a.Seller)

	// Same name again: nothing to do.
	assert.False(t, a.Rename("u1", "alice92"))
}

func TestAnonymizeSeller(t *testing.T) {
	a := liveAuction()
	a.AnonymizeSeller("[deleted user]")
	assert.Equal(t, "[deleted user]", a.Seller)

	before := a.UpdatedAt
	a.AnonymizeSeller("[deleted user]")
	assert.Equal(t, before, a.UpdatedAt)
}

func TestValidatePricing(t *testing.T) {
	a := liveAuction()
	require.NoError(t, a.ValidatePricing())

	a.BuyNowPrice = price(50)
	assert.True(t, IsRuleError(a.ValidatePricing()))

	a.BuyNowPrice = nil
	a.ReservePrice = -1
	assert.True(t, IsRuleError(a.ValidatePricing()))
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus("live")
	require.True(t, ok)
	assert.Equal(t, AuctionLive, status)

	_, ok = ParseStatus("bogus")
	assert.False(t, ok)
}
