package domain

import (
	"time"
)

// State machine for the auction aggregate. Every transition re-checks
// the current status so that redelivered or out-of-order messages can
// never corrupt state.

// BuyNowAvailable derives availability purely from the aggregate's own
// fields; it is never cached elsewhere.
func (a *Auction) BuyNowAvailable() bool {
	return a.BuyNowPrice != nil && a.Status == AuctionLive
}

// ReserveForBuyNow moves a live auction into the reserved state on
// behalf of a buyer. Refusals are RuleErrors: the caller turns them
// into a reservation-failed event, not a transport error.
func (a *Auction) ReserveForBuyNow(buyerID, buyer string) error {
	if a.BuyNowPrice == nil {
		return NewRuleError("auction %s has no buy-now price", a.ID)
	}
	if a.Status != AuctionLive {
		return NewRuleError("auction %s is %s, not live", a.ID, a.Status)
	}
	if buyerID == a.SellerID || (buyerID == "" && buyer == a.Seller) {
		return NewRuleError("seller cannot buy their own auction")
	}

	a.Status = AuctionReservedForBuyNow
	a.touch()
	return nil
}

// ReleaseReservation reverts a reserved auction to live. It returns
// false without error when the auction is not currently reserved, so a
// duplicate or late release message is a no-op.
func (a *Auction) ReleaseReservation() bool {
	if a.Status != AuctionReservedForBuyNow {
		return false
	}

	a.Status = AuctionLive
	a.touch()
	return true
}

// CompleteBuyNow finishes a reserved auction and records the winner.
func (a *Auction) CompleteBuyNow(buyerID, buyer string) error {
	if a.Status != AuctionReservedForBuyNow {
		return NewRuleError("auction %s is %s, expected reserved", a.ID, a.Status)
	}

	a.Status = AuctionFinished
	a.WinnerID = buyerID
	a.Winner = buyer
	if a.BuyNowPrice != nil {
		price := *a.BuyNowPrice
		a.CurrentHighBid = &price
	}
	a.touch()
	return nil
}

// Activate brings a scheduled or inactive auction live. An auction
// whose end already passed can never be (re)activated.
func (a *Auction) Activate(now time.Time) error {
	if a.Status != AuctionInactive && a.Status != AuctionScheduled {
		return NewRuleError("auction %s is %s, cannot activate", a.ID, a.Status)
	}
	if !a.AuctionEnd.After(now) {
		return NewRuleError("auction %s already ended at %s", a.ID, a.AuctionEnd.Format(time.RFC3339))
	}

	a.Status = AuctionLive
	a.touch()
	return nil
}

func (a *Auction) Deactivate() error {
	if a.Status != AuctionLive && a.Status != AuctionScheduled {
		return NewRuleError("auction %s is %s, cannot deactivate", a.ID, a.Status)
	}

	a.Status = AuctionInactive
	a.touch()
	return nil
}

// Cancel takes any non-terminal auction to cancelled with a free-text
// reason. Cancelling an already-cancelled auction is idempotent.
func (a *Auction) Cancel(reason string) error {
	if a.Status == AuctionCancelled {
		return nil
	}
	if a.Status.Terminal() {
		return NewRuleError("auction %s is %s, cannot cancel", a.ID, a.Status)
	}

	a.Status = AuctionCancelled
	if reason != "" {
		if a.Item.Attributes == nil {
			a.Item.Attributes = make(map[string]string)
		}
		a.Item.Attributes["cancellation_reason"] = reason
	}
	a.touch()
	return nil
}

// ApplyBid merges an accepted bid into the cached high bid. The merge
// is monotonic: an amount is installed only when no bid is stored yet
// or it strictly exceeds the stored one, which makes redelivery safe.
// It reports whether the aggregate changed.
func (a *Auction) ApplyBid(amount float64, bidderID, bidder string) bool {
	if a.CurrentHighBid != nil && amount <= *a.CurrentHighBid {
		return false
	}

	a.CurrentHighBid = &amount
	a.WinnerID = bidderID
	a.Winner = bidder
	a.touch()
	return true
}

// ApplyRetraction installs the new top bid supplied by the ranking
// authority. The Bid service owns ranking, so the values are trusted
// outright; all-nil means no bids remain and the high bid is cleared.
func (a *Auction) ApplyRetraction(amount *float64, bidderID, bidder *string) {
	if amount == nil && bidderID == nil && bidder == nil {
		a.CurrentHighBid = nil
		a.WinnerID = ""
		a.Winner = ""
		a.touch()
		return
	}

	a.CurrentHighBid = amount
	if bidderID != nil {
		a.WinnerID = *bidderID
	} else {
		a.WinnerID = ""
	}
	if bidder != nil {
		a.Winner = *bidder
	} else {
		a.Winner = ""
	}
	a.touch()
}

// AnonymizeSeller replaces the seller name on a settled auction whose
// owner's account is gone. Repeatable without observable difference.
func (a *Auction) AnonymizeSeller(placeholder string) {
	if a.Seller == placeholder {
		return
	}
	a.Seller = placeholder
	a.touch()
}

// Rename propagates a username change into the seller and winner
// fields. It reports whether anything changed.
func (a *Auction) Rename(userID, username string) bool {
	changed := false
	if a.SellerID == userID && a.Seller != username {
		a.Seller = username
		changed = true
	}
	if a.WinnerID == userID && a.Winner != username {
		a.Winner = username
		changed = true
	}
	if changed {
		a.touch()
	}
	return changed
}

// ValidatePricing enforces the pricing invariants shared by import
// validation and aggregate construction.
func (a *Auction) ValidatePricing() error {
	if a.ReservePrice < 0 {
		return NewRuleError("reserve price must not be negative")
	}
	if a.BuyNowPrice != nil && *a.BuyNowPrice <= a.ReservePrice {
		return NewRuleError("buy-now price must exceed reserve price")
	}
	return nil
}

func (a *Auction) touch() {
	a.UpdatedAt = time.Now()
}
