package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"auction-service/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

const auctionColumns = `id, seller_id, seller, title, description, item_condition, category,
	brand, attributes, file_refs, reserve_price, buy_now_price, currency,
	current_high_bid, winner_id, winner, status, auction_end, created_at, updated_at, version`

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return auction, nil
}

// UpdateAuction writes the aggregate back guarded by its version token.
// Zero affected rows means another writer got there first.
func (r *MySQLAuctionRepository) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	return updateAuctionTx(ctx, r.db, auction)
}

func (r *MySQLAuctionRepository) CreateAuctions(ctx context.Context, auctions []*domain.Auction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, auction := range auctions {
		attrs, fileRefs, err := marshalItemJSON(auction)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query,
			auction.ID, auction.SellerID, auction.Seller,
			auction.Item.Title, auction.Item.Description, auction.Item.Condition,
			auction.Item.Category, auction.Item.Brand, attrs, fileRefs,
			auction.ReservePrice, auction.BuyNowPrice, auction.Currency,
			auction.CurrentHighBid, auction.WinnerID, auction.Winner,
			int(auction.Status), auction.AuctionEnd,
			auction.CreatedAt, auction.UpdatedAt, auction.Version)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *MySQLAuctionRepository) UpdateAuctions(ctx context.Context, auctions []*domain.Auction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, auction := range auctions {
		if err := updateAuctionTx(ctx, tx, auction); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *MySQLAuctionRepository) GetActiveAuctionsBySeller(ctx context.Context, sellerID string) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + ` FROM auctions
        WHERE seller_id = ? AND status NOT IN (?, ?)
    `
	return r.queryAuctions(ctx, query, sellerID,
		int(domain.AuctionFinished), int(domain.AuctionCancelled))
}

func (r *MySQLAuctionRepository) GetFinishedAuctionsBySeller(ctx context.Context, sellerID string) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE seller_id = ? AND status = ?`
	return r.queryAuctions(ctx, query, sellerID, int(domain.AuctionFinished))
}

func (r *MySQLAuctionRepository) GetAuctionsByUser(ctx context.Context, userID string) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE seller_id = ? OR winner_id = ?`
	return r.queryAuctions(ctx, query, userID, userID)
}

func (r *MySQLAuctionRepository) SearchAuctions(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE 1=1`
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, int(status))
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ", "))
	}
	if filter.SellerID != "" {
		query += " AND seller_id = ?"
		args = append(args, filter.SellerID)
	}
	if filter.From != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.To)
	}

	return r.queryAuctions(ctx, query, args...)
}

func (r *MySQLAuctionRepository) GetStuckReservations(ctx context.Context, olderThan time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? AND updated_at < ?`
	return r.queryAuctions(ctx, query, int(domain.AuctionReservedForBuyNow), olderThan)
}

func (r *MySQLAuctionRepository) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateAuctionTx(ctx context.Context, ex execer, auction *domain.Auction) error {
	attrs, fileRefs, err := marshalItemJSON(auction)
	if err != nil {
		return err
	}

	query := `
        UPDATE auctions SET
            seller = ?, title = ?, description = ?, item_condition = ?, category = ?,
            brand = ?, attributes = ?, file_refs = ?, reserve_price = ?, buy_now_price = ?,
            currency = ?, current_high_bid = ?, winner_id = ?, winner = ?, status = ?,
            auction_end = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?
    `
	result, err := ex.ExecContext(ctx, query,
		auction.Seller, auction.Item.Title, auction.Item.Description,
		auction.Item.Condition, auction.Item.Category, auction.Item.Brand,
		attrs, fileRefs, auction.ReservePrice, auction.BuyNowPrice,
		auction.Currency, auction.CurrentHighBid, auction.WinnerID, auction.Winner,
		int(auction.Status), auction.AuctionEnd, auction.UpdatedAt,
		auction.ID, auction.Version)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConflict
	}

	auction.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status int
	var attrs, fileRefs sql.NullString
	var buyNow, highBid sql.NullFloat64
	var winnerID, winner sql.NullString

	err := row.Scan(
		&auction.ID, &auction.SellerID, &auction.Seller,
		&auction.Item.Title, &auction.Item.Description, &auction.Item.Condition,
		&auction.Item.Category, &auction.Item.Brand, &attrs, &fileRefs,
		&auction.ReservePrice, &buyNow, &auction.Currency,
		&highBid, &winnerID, &winner, &status, &auction.AuctionEnd,
		&auction.CreatedAt, &auction.UpdatedAt, &auction.Version)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	if buyNow.Valid {
		auction.BuyNowPrice = &buyNow.Float64
	}
	if highBid.Valid {
		auction.CurrentHighBid = &highBid.Float64
	}
	auction.WinnerID = winnerID.String
	auction.Winner = winner.String
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &auction.Item.Attributes); err != nil {
			return nil, err
		}
	}
	if fileRefs.Valid && fileRefs.String != "" {
		if err := json.Unmarshal([]byte(fileRefs.String), &auction.Item.FileRefs); err != nil {
			return nil, err
		}
	}

	return &auction, nil
}

func marshalItemJSON(auction *domain.Auction) (attrs, fileRefs []byte, err error) {
	if auction.Item.Attributes != nil {
		attrs, err = json.Marshal(auction.Item.Attributes)
		if err != nil {
			return nil, nil, err
		}
	}
	if auction.Item.FileRefs != nil {
		fileRefs, err = json.Marshal(auction.Item.FileRefs)
		if err != nil {
			return nil, nil, err
		}
	}
	return attrs, fileRefs, nil
}
