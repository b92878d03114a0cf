package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

type CSVExporter struct{}

func (e *CSVExporter) Export(rows []Row) ([]byte, string, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "title", "category", "seller", "status", "currency",
		"reserve_price", "buy_now_price", "current_high_bid", "winner",
		"auction_end", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, "", "", err
	}

	for _, row := range rows {
		record := []string{
			row.ID, row.Title, row.Category, row.Seller, row.Status, row.Currency,
			formatPrice(row.ReservePrice),
			formatOptionalPrice(row.BuyNowPrice),
			formatOptionalPrice(row.CurrentHighBid),
			row.Winner,
			row.AuctionEnd.Format(time.RFC3339),
			row.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, "", "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", "", err
	}

	return buf.Bytes(), "text/csv", "csv", nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptionalPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return formatPrice(*v)
}
