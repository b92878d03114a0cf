package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"auction-service/internal/domain"
	"auction-service/internal/messages"
	"auction-service/pkg/logger"
)

// BidSyncConsumer keeps the cached high bid on each auction eventually
// consistent with the Bid service, which owns ranking. Application is
// idempotent, so at-least-once delivery needs no dedup bookkeeping.
type BidSyncConsumer struct {
	repo     domain.AuctionRepository
	attempts int
	log      logger.Logger
}

func NewBidSyncConsumer(repo domain.AuctionRepository, attempts int, log logger.Logger) *BidSyncConsumer {
	return &BidSyncConsumer{
		repo:     repo,
		attempts: attempts,
		log:      log,
	}
}

func (c *BidSyncConsumer) HandleBidPlaced(ctx context.Context, data []byte) error {
	var event messages.BidPlaced
	if err := json.Unmarshal(data, &event); err != nil {
		c.log.Error("Malformed bid-placed event", "error", err)
		return nil
	}

	if !bidAccepted(event.BidStatus) {
		c.log.Debug("Ignoring non-accepted bid", "auction_id", event.AuctionID, "status", event.BidStatus)
		return nil
	}

	_, err := mutateAuction(ctx, c.repo, event.AuctionID, c.attempts, func(a *domain.Auction) (bool, error) {
		return a.ApplyBid(event.BidAmount, event.BidderID, event.Bidder), nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		// The auction may have been removed independently of the bid
		// stream; nothing to synchronize.
		c.log.Warn("Bid for unknown auction dropped", "auction_id", event.AuctionID)
		return nil
	}
	if err != nil {
		return err
	}

	c.log.Info("High bid synchronized",
		"auction_id", event.AuctionID, "amount", event.BidAmount, "bidder", event.Bidder)
	return nil
}

func (c *BidSyncConsumer) HandleBidRetracted(ctx context.Context, data []byte) error {
	var event messages.BidRetracted
	if err := json.Unmarshal(data, &event); err != nil {
		c.log.Error("Malformed bid-retracted event", "error", err)
		return nil
	}

	_, err := mutateAuction(ctx, c.repo, event.AuctionID, c.attempts, func(a *domain.Auction) (bool, error) {
		// The Bid service already re-ranked; its verdict is installed
		// outright, never recomputed here.
		if event.NewHighestBidID == nil && event.NewHighestAmount == nil && event.NewHighestBidderID == nil {
			a.ApplyRetraction(nil, nil, nil)
		} else {
			a.ApplyRetraction(event.NewHighestAmount, event.NewHighestBidderID, nil)
		}
		return true, nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		c.log.Warn("Retraction for unknown auction dropped", "auction_id", event.AuctionID)
		return nil
	}
	if err != nil {
		return err
	}

	c.log.Info("Bid retraction applied", "auction_id", event.AuctionID)
	return nil
}

func bidAccepted(status string) bool {
	return strings.Contains(status, "Accepted")
}
