package export

import (
	"time"

	"auction-service/internal/domain"
)

// Row is the flattened shape an auction takes in an export file.
type Row struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	Seller         string    `json:"seller"`
	Status         string    `json:"status"`
	Currency       string    `json:"currency"`
	ReservePrice   float64   `json:"reservePrice"`
	BuyNowPrice    *float64  `json:"buyNowPrice,omitempty"`
	CurrentHighBid *float64  `json:"currentHighBid,omitempty"`
	Winner         string    `json:"winner,omitempty"`
	AuctionEnd     time.Time `json:"auctionEnd"`
	CreatedAt      time.Time `json:"createdAt"`
}

func RowFromAuction(a *domain.Auction) Row {
	return Row{
		ID:             a.ID,
		Title:          a.Item.Title,
		Category:       a.Item.Category,
		Seller:         a.Seller,
		Status:         a.Status.String(),
		Currency:       a.Currency,
		ReservePrice:   a.ReservePrice,
		BuyNowPrice:    a.BuyNowPrice,
		CurrentHighBid: a.CurrentHighBid,
		Winner:         a.Winner,
		AuctionEnd:     a.AuctionEnd,
		CreatedAt:      a.CreatedAt,
	}
}

// Exporter renders rows into one export format. Implementations form a
// small closed set selected by For; there is no default format.
type Exporter interface {
	Export(rows []Row) (data []byte, contentType string, extension string, err error)
}

var exporters = map[string]Exporter{
	"csv":  &CSVExporter{},
	"json": &JSONExporter{},
}

// For returns the exporter registered for format, or false when the
// format is unknown. Callers must fail the job explicitly on false
// rather than fall back to a default.
func For(format string) (Exporter, bool) {
	exporter, ok := exporters[format]
	return exporter, ok
}
