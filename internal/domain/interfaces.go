package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	// UpdateAuction persists a mutated aggregate. It returns
	// ErrConflict when the stored version no longer matches the
	// aggregate's, in which case the caller re-reads and retries.
	UpdateAuction(ctx context.Context, auction *Auction) error
	// CreateAuctions inserts a batch inside a single transaction so a
	// crash mid-batch leaves no partial rows behind the checkpoint.
	CreateAuctions(ctx context.Context, auctions []*Auction) error
	// UpdateAuctions persists several mutated aggregates in one
	// transaction (username propagation, lifecycle cascades).
	UpdateAuctions(ctx context.Context, auctions []*Auction) error
	GetActiveAuctionsBySeller(ctx context.Context, sellerID string) ([]*Auction, error)
	GetFinishedAuctionsBySeller(ctx context.Context, sellerID string) ([]*Auction, error)
	GetAuctionsByUser(ctx context.Context, userID string) ([]*Auction, error)
	SearchAuctions(ctx context.Context, filter AuctionFilter) ([]*Auction, error)
	GetStuckReservations(ctx context.Context, olderThan time.Time) ([]*Auction, error)
}

// Checkpoint interface
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, correlationID string) (*ImportCheckpoint, error)
	SaveCheckpoint(ctx context.Context, cp *ImportCheckpoint) error
	DeleteCheckpoint(ctx context.Context, correlationID string) error
}

// Bus interfaces
type Publisher interface {
	Publish(ctx context.Context, subject string, message interface{}) error
}

type MessageHandler func(ctx context.Context, data []byte) error

type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) error
}

// File storage interface
type FileStore interface {
	SaveFile(ctx context.Context, name, contentType string, data []byte) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
