package messages

import (
	"time"

	"auction-service/internal/domain"
)

// Bus subjects. Commands are consumed by exactly one service; events
// may have any number of subscribers.
const (
	SubjectBidPlaced    = "bid.placed"
	SubjectBidRetracted = "bid.retracted"

	SubjectReserveBuyNow     = "auction.buynow.reserve"
	SubjectBuyNowReserved    = "auction.buynow.reserved"
	SubjectReservationFailed = "auction.buynow.reservation-failed"
	SubjectCompleteBuyNow    = "auction.buynow.complete"
	SubjectBuyNowCompleted   = "auction.buynow.completed"
	SubjectReleaseBuyNow     = "auction.buynow.release"
	SubjectBuyNowReleased    = "auction.buynow.released"

	SubjectProcessImport     = "auction.import.process"
	SubjectImportCompleted   = "auction.import.completed"
	SubjectProcessExport     = "auction.export.process"
	SubjectExportCompleted   = "auction.export.completed"
	SubjectProcessBulkUpdate = "auction.bulk-update.process"
	SubjectBulkUpdateDone    = "auction.bulk-update.completed"

	SubjectRequestJob  = "job.request"
	SubjectJobProgress = "job.progress"
	SubjectJobFail     = "job.fail"

	SubjectUserDeleted     = "user.deleted"
	SubjectUserSuspended   = "user.suspended"
	SubjectUserRoleChanged = "user.role-changed"
	SubjectUserUpdated     = "user.updated"

	SubjectAuctionCancelledNotification = "notify.auction-cancelled"
)

// Bid synchronization (in, from the Bid service)

type BidPlaced struct {
	AuctionID string  `json:"auctionId"`
	BidAmount float64 `json:"bidAmount"`
	BidderID  string  `json:"bidderId"`
	Bidder    string  `json:"bidder"`
	BidStatus string  `json:"bidStatus"`
}

type BidRetracted struct {
	AuctionID          string   `json:"auctionId"`
	NewHighestBidID    *string  `json:"newHighestBidId,omitempty"`
	NewHighestAmount   *float64 `json:"newHighestAmount,omitempty"`
	NewHighestBidderID *string  `json:"newHighestBidderId,omitempty"`
}

// Buy-now reservation saga

type ReserveAuctionForBuyNow struct {
	CorrelationID string `json:"correlationId"`
	AuctionID     string `json:"auctionId"`
	BuyerID       string `json:"buyerId"`
	BuyerUsername string `json:"buyerUsername"`
}

type AuctionReservedForBuyNow struct {
	CorrelationID string  `json:"correlationId"`
	AuctionID     string  `json:"auctionId"`
	SellerID      string  `json:"sellerId"`
	BuyNowPrice   float64 `json:"buyNowPrice"`
	Currency      string  `json:"currency"`
	ItemTitle     string  `json:"itemTitle"`
}

type AuctionReservationFailed struct {
	CorrelationID string `json:"correlationId"`
	AuctionID     string `json:"auctionId"`
	Reason        string `json:"reason"`
}

type CompleteBuyNowAuction struct {
	CorrelationID string `json:"correlationId"`
	AuctionID     string `json:"auctionId"`
	BuyerID       string `json:"buyerId"`
	BuyerUsername string `json:"buyerUsername"`
	OrderID       string `json:"orderId"`
}

type BuyNowAuctionCompleted struct {
	CorrelationID string    `json:"correlationId"`
	AuctionID     string    `json:"auctionId"`
	OrderID       string    `json:"orderId"`
	CompletedAt   time.Time `json:"completedAt"`
}

type ReleaseAuctionReservation struct {
	CorrelationID string `json:"correlationId"`
	AuctionID     string `json:"auctionId"`
	Reason        string `json:"reason"`
}

type AuctionReservationReleased struct {
	CorrelationID string `json:"correlationId"`
	AuctionID     string `json:"auctionId"`
}

// Bulk operations

type ImportRow struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Condition       string            `json:"condition"`
	Category        string            `json:"category"`
	Brand           string            `json:"brand"`
	ManufactureYear int               `json:"manufactureYear"`
	ReservePrice    float64           `json:"reservePrice"`
	BuyNowPrice     *float64          `json:"buyNowPrice,omitempty"`
	Currency        string            `json:"currency"`
	AuctionEnd      time.Time         `json:"auctionEnd"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	FileRefs        []string          `json:"fileRefs,omitempty"`
}

type ProcessAuctionImportCommand struct {
	CorrelationID string      `json:"correlationId"`
	SellerID      string      `json:"sellerId"`
	Seller        string      `json:"seller"`
	Requester     string      `json:"requester"`
	Rows          []ImportRow `json:"rows"`
}

type AuctionImportCompletedEvent struct {
	CorrelationID string                  `json:"correlationId"`
	Succeeded     int                     `json:"succeeded"`
	Failed        int                     `json:"failed"`
	Errors        []domain.ImportRowError `json:"errors,omitempty"`
}

type ExportFilter struct {
	Statuses []string   `json:"statuses,omitempty"`
	SellerID string     `json:"sellerId,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
}

type ProcessAuctionExportCommand struct {
	CorrelationID string       `json:"correlationId"`
	Requester     string       `json:"requester"`
	Format        string       `json:"format"`
	Filter        ExportFilter `json:"filter"`
}

type AuctionExportCompletedEvent struct {
	CorrelationID string `json:"correlationId"`
	Format        string `json:"format"`
	FileName      string `json:"fileName"`
	ContentType   string `json:"contentType"`
	RecordCount   int    `json:"recordCount"`
}

type ProcessBulkAuctionUpdateCommand struct {
	CorrelationID string   `json:"correlationId"`
	Requester     string   `json:"requester"`
	AuctionIDs    []string `json:"auctionIds"`
	Activate      bool     `json:"activate"`
}

type BulkAuctionUpdateCompletedEvent struct {
	CorrelationID string `json:"correlationId"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
}

// Job tracking (out, to the Job service; this worker only reports)

type RequestJobCommand struct {
	CorrelationID  string `json:"correlationId"`
	JobType        string `json:"jobType"`
	Requester      string `json:"requester"`
	PayloadSummary string `json:"payloadSummary"`
	TotalItems     int    `json:"totalItems"`
}

type ReportJobBatchProgressCommand struct {
	CorrelationID  string `json:"correlationId"`
	CompletedCount int    `json:"completedCount"`
	FailedCount    int    `json:"failedCount"`
}

type FailJobByCorrelationCommand struct {
	CorrelationID string `json:"correlationId"`
	ErrorMessage  string `json:"errorMessage"`
}

// Identity lifecycle (in, from the Identity service)

type UserDeleted struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type UserSuspended struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

type UserRoleChanged struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	NewRoles []string `json:"newRoles"`
}

type UserUpdated struct {
	UserID      string `json:"userId"`
	NewUsername string `json:"newUsername"`
}

// Notifications (out, to the Notification service)

type AuctionCancelledNotification struct {
	Bidder         string `json:"bidder"`
	AuctionTitle   string `json:"auctionTitle"`
	Reason         string `json:"reason"`
	RefundExpected bool   `json:"refundExpected"`
}
