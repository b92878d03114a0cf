package domain

import (
	"time"
)

type AuctionStatus int

const (
	AuctionDraft AuctionStatus = iota
	AuctionScheduled
	AuctionLive
	AuctionReservedForBuyNow
	AuctionFinished
	AuctionInactive
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionDraft:
		return "draft"
	case AuctionScheduled:
		return "scheduled"
	case AuctionLive:
		return "live"
	case AuctionReservedForBuyNow:
		return "reserved_for_buy_now"
	case AuctionFinished:
		return "finished"
	case AuctionInactive:
		return "inactive"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire name of a status back to its value.
func ParseStatus(s string) (AuctionStatus, bool) {
	for status := AuctionDraft; status <= AuctionCancelled; status++ {
		if status.String() == s {
			return status, true
		}
	}
	return 0, false
}

// Terminal reports whether the status never transitions again. Auctions
// are never physically deleted, only cancelled or finished.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionFinished || s == AuctionCancelled
}

type Item struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Condition   string            `json:"condition"`
	Category    string            `json:"category"`
	Brand       string            `json:"brand"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	FileRefs    []string          `json:"file_refs,omitempty"`
}

type Auction struct {
	ID             string
	SellerID       string
	Seller         string
	Item           Item
	ReservePrice   float64
	BuyNowPrice    *float64
	Currency       string
	CurrentHighBid *float64
	WinnerID       string
	Winner         string
	Status         AuctionStatus
	AuctionEnd     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Version is the optimistic-concurrency token checked by the
	// repository on every update.
	Version int64
}

// ImportCheckpoint is the durable resume marker for one import run,
// keyed by the import's correlation id.
type ImportCheckpoint struct {
	CorrelationID    string
	LastProcessedRow int
	Succeeded        int
	Failed           int
	UpdatedAt        time.Time
}

// ValidatedImportRow only lives between row validation and the batch
// insert that persists the auction it carries.
type ValidatedImportRow struct {
	Row     int
	Auction *Auction
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AuctionFilter selects auctions for export.
type AuctionFilter struct {
	Statuses []AuctionStatus
	SellerID string
	From     *time.Time
	To       *time.Time
}
