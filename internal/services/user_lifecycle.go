package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"auction-service/internal/domain"
	"auction-service/internal/messages"
	"auction-service/pkg/logger"
)

// sellerPlaceholder replaces the seller name on settled auctions whose
// owner's account is gone; their outcome stays on record.
const sellerPlaceholder = "[deleted user]"

// UserLifecycleReactor cascades identity events into auction state. It
// carries no dedup token: cancel, anonymize and rename are all
// naturally idempotent, so a redelivered event changes nothing.
type UserLifecycleReactor struct {
	repo     domain.AuctionRepository
	pub      domain.Publisher
	attempts int
	log      logger.Logger
}

func NewUserLifecycleReactor(repo domain.AuctionRepository, pub domain.Publisher, attempts int, log logger.Logger) *UserLifecycleReactor {
	return &UserLifecycleReactor{
		repo:     repo,
		pub:      pub,
		attempts: attempts,
		log:      log,
	}
}

func (r *UserLifecycleReactor) HandleUserDeleted(ctx context.Context, data []byte) error {
	var event messages.UserDeleted
	if err := json.Unmarshal(data, &event); err != nil {
		r.log.Error("Malformed user-deleted event", "error", err)
		return nil
	}

	return r.cascadeAccountClosed(ctx, event.UserID, event.Username,
		fmt.Sprintf("seller account %s was deleted", event.Username))
}

func (r *UserLifecycleReactor) HandleUserSuspended(ctx context.Context, data []byte) error {
	var event messages.UserSuspended
	if err := json.Unmarshal(data, &event); err != nil {
		r.log.Error("Malformed user-suspended event", "error", err)
		return nil
	}

	reason := fmt.Sprintf("seller account %s was suspended", event.Username)
	if event.Reason != "" {
		reason = fmt.Sprintf("%s: %s", reason, event.Reason)
	}
	return r.cascadeAccountClosed(ctx, event.UserID, event.Username, reason)
}

// HandleUserRoleChanged cascades only when the user can no longer
// sell, i.e. both the Seller and Admin roles are gone.
func (r *UserLifecycleReactor) HandleUserRoleChanged(ctx context.Context, data []byte) error {
	var event messages.UserRoleChanged
	if err := json.Unmarshal(data, &event); err != nil {
		r.log.Error("Malformed role-changed event", "error", err)
		return nil
	}

	if canSell(event.NewRoles) {
		return nil
	}
	return r.cascadeAccountClosed(ctx, event.UserID, event.Username,
		fmt.Sprintf("seller %s lost the selling role", event.Username))
}

func (r *UserLifecycleReactor) HandleUserUpdated(ctx context.Context, data []byte) error {
	var event messages.UserUpdated
	if err := json.Unmarshal(data, &event); err != nil {
		r.log.Error("Malformed user-updated event", "error", err)
		return nil
	}

	return r.withBatchRetry(func() error {
		auctions, err := r.repo.GetAuctionsByUser(ctx, event.UserID)
		if err != nil {
			return err
		}

		var changed []*domain.Auction
		for _, auction := range auctions {
			if auction.Rename(event.UserID, event.NewUsername) {
				changed = append(changed, auction)
			}
		}
		if len(changed) == 0 {
			return nil
		}

		// All renames land in one persistence call.
		if err := r.repo.UpdateAuctions(ctx, changed); err != nil {
			return err
		}

		r.log.Info("Username propagated",
			"user_id", event.UserID, "username", event.NewUsername, "auctions", len(changed))
		return nil
	})
}

func (r *UserLifecycleReactor) cascadeAccountClosed(ctx context.Context, userID, username, reason string) error {
	type bidderTitle struct {
		bidder string
		title  string
	}
	var notified map[bidderTitle]bool

	err := r.withBatchRetry(func() error {
		active, err := r.repo.GetActiveAuctionsBySeller(ctx, userID)
		if err != nil {
			return err
		}
		finished, err := r.repo.GetFinishedAuctionsBySeller(ctx, userID)
		if err != nil {
			return err
		}

		notified = make(map[bidderTitle]bool)
		var changed []*domain.Auction
		for _, auction := range active {
			if auction.CurrentHighBid != nil && auction.Winner != "" {
				notified[bidderTitle{auction.Winner, auction.Item.Title}] = true
			}
			if err := auction.Cancel(reason); err != nil {
				return err
			}
			changed = append(changed, auction)
		}
		for _, auction := range finished {
			if auction.Seller == sellerPlaceholder {
				continue
			}
			auction.AnonymizeSeller(sellerPlaceholder)
			changed = append(changed, auction)
		}

		if len(changed) == 0 {
			return nil
		}
		return r.repo.UpdateAuctions(ctx, changed)
	})
	if err != nil {
		return err
	}

	for pair := range notified {
		notification := messages.AuctionCancelledNotification{
			Bidder:         pair.bidder,
			AuctionTitle:   pair.title,
			Reason:         reason,
			RefundExpected: true,
		}
		if err := r.pub.Publish(ctx, messages.SubjectAuctionCancelledNotification, notification); err != nil {
			return err
		}
	}

	r.log.Info("Account lifecycle cascade applied",
		"user_id", userID, "username", username, "notifications", len(notified))
	return nil
}

// withBatchRetry re-runs a read-mutate-write-batch cycle when another
// handler raced on one of the touched auctions.
func (r *UserLifecycleReactor) withBatchRetry(op func() error) error {
	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return err
}

func canSell(roles []string) bool {
	for _, role := range roles {
		if role == "Seller" || role == "Admin" {
			return true
		}
	}
	return false
}
