package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-service/internal/domain"
	"auction-service/internal/messages"
	"auction-service/pkg/logger"
)

// BuyNowSaga choreographs the reserve/complete/release protocol with
// the Order service. There is no orchestrator and no distributed
// transaction: every handler re-checks the auction's current status,
// so any single message can be redelivered or arrive late without
// corrupting state.
type BuyNowSaga struct {
	repo     domain.AuctionRepository
	pub      domain.Publisher
	attempts int
	log      logger.Logger
}

func NewBuyNowSaga(repo domain.AuctionRepository, pub domain.Publisher, attempts int, log logger.Logger) *BuyNowSaga {
	return &BuyNowSaga{
		repo:     repo,
		pub:      pub,
		attempts: attempts,
		log:      log,
	}
}

// HandleReserve treats a refused reservation as an expected business
// outcome: it reaches the caller as a failure event, not a handler
// error. Only a failed publish of either outcome event goes back to
// the bus for redelivery.
func (s *BuyNowSaga) HandleReserve(ctx context.Context, data []byte) error {
	var cmd messages.ReserveAuctionForBuyNow
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.log.Error("Malformed reserve command", "error", err)
		return nil
	}

	auction, err := mutateAuction(ctx, s.repo, cmd.AuctionID, s.attempts, func(a *domain.Auction) (bool, error) {
		if err := a.ReserveForBuyNow(cmd.BuyerID, cmd.BuyerUsername); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return s.publishReservationFailed(ctx, &cmd, err)
	}

	event := messages.AuctionReservedForBuyNow{
		CorrelationID: cmd.CorrelationID,
		AuctionID:     auction.ID,
		SellerID:      auction.SellerID,
		BuyNowPrice:   *auction.BuyNowPrice,
		Currency:      auction.Currency,
		ItemTitle:     auction.Item.Title,
	}
	if err := s.pub.Publish(ctx, messages.SubjectBuyNowReserved, event); err != nil {
		s.log.Error("Failed to publish reservation event",
			"auction_id", auction.ID, "correlation_id", cmd.CorrelationID, "error", err)
		return err
	}

	s.log.Info("Auction reserved for buy-now",
		"auction_id", auction.ID, "buyer", cmd.BuyerUsername, "correlation_id", cmd.CorrelationID)
	return nil
}

// publishReservationFailed returns the publish error so the command is
// redelivered: the caller saga is blocked until this event arrives, and
// a redelivery re-derives the identical refusal.
func (s *BuyNowSaga) publishReservationFailed(ctx context.Context, cmd *messages.ReserveAuctionForBuyNow, cause error) error {
	reason := cause.Error()
	if errors.Is(cause, domain.ErrNotFound) {
		reason = fmt.Sprintf("auction %s not found", cmd.AuctionID)
	}

	s.log.Warn("Buy-now reservation refused",
		"auction_id", cmd.AuctionID, "buyer", cmd.BuyerUsername, "reason", reason)

	event := messages.AuctionReservationFailed{
		CorrelationID: cmd.CorrelationID,
		AuctionID:     cmd.AuctionID,
		Reason:        reason,
	}
	if err := s.pub.Publish(ctx, messages.SubjectReservationFailed, event); err != nil {
		s.log.Error("Failed to publish reservation failure",
			"auction_id", cmd.AuctionID, "correlation_id", cmd.CorrelationID, "error", err)
		return err
	}
	return nil
}

// HandleComplete finishes a reserved auction after the Order service
// created the order. A missing auction or a failed write here is an
// exceptional state post-reservation, so the error is returned for the
// bus to redeliver or dead-letter.
func (s *BuyNowSaga) HandleComplete(ctx context.Context, data []byte) error {
	var cmd messages.CompleteBuyNowAuction
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.log.Error("Malformed complete command", "error", err)
		return nil
	}

	auction, err := mutateAuction(ctx, s.repo, cmd.AuctionID, s.attempts, func(a *domain.Auction) (bool, error) {
		// Redelivered completion for an already-finished sale.
		if a.Status == domain.AuctionFinished && a.WinnerID == cmd.BuyerID {
			return false, nil
		}
		if err := a.CompleteBuyNow(cmd.BuyerID, cmd.BuyerUsername); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		s.log.Error("Buy-now completion failed",
			"auction_id", cmd.AuctionID, "order_id", cmd.OrderID, "error", err)
		return err
	}

	event := messages.BuyNowAuctionCompleted{
		CorrelationID: cmd.CorrelationID,
		AuctionID:     auction.ID,
		OrderID:       cmd.OrderID,
		CompletedAt:   time.Now(),
	}
	if err := s.pub.Publish(ctx, messages.SubjectBuyNowCompleted, event); err != nil {
		return err
	}

	s.log.Info("Buy-now auction completed",
		"auction_id", auction.ID, "order_id", cmd.OrderID, "winner", cmd.BuyerUsername)
	return nil
}

// HandleRelease reverts a reservation. The released event is emitted
// even when the auction is missing or already past the reserved state,
// so any saga waiting on it is always unblocked.
func (s *BuyNowSaga) HandleRelease(ctx context.Context, data []byte) error {
	var cmd messages.ReleaseAuctionReservation
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.log.Error("Malformed release command", "error", err)
		return nil
	}

	_, err := mutateAuction(ctx, s.repo, cmd.AuctionID, s.attempts, func(a *domain.Auction) (bool, error) {
		return a.ReleaseReservation(), nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("Release for unknown auction", "auction_id", cmd.AuctionID)
	} else {
		s.log.Info("Reservation released",
			"auction_id", cmd.AuctionID, "reason", cmd.Reason, "correlation_id", cmd.CorrelationID)
	}

	event := messages.AuctionReservationReleased{
		CorrelationID: cmd.CorrelationID,
		AuctionID:     cmd.AuctionID,
	}
	return s.pub.Publish(ctx, messages.SubjectBuyNowReleased, event)
}
