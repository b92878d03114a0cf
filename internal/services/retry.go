package services

import (
	"context"
	"errors"

	"auction-service/internal/domain"
)

// mutateAuction runs the read-mutate-write cycle for one auction. A
// version conflict means another handler won the race on the same row,
// so the cycle restarts from a fresh read instead of overwriting. The
// mutate func reports whether the aggregate actually changed; an
// unchanged aggregate is not written at all.
func mutateAuction(
	ctx context.Context,
	repo domain.AuctionRepository,
	auctionID string,
	attempts int,
	mutate func(*domain.Auction) (bool, error),
) (*domain.Auction, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		auction, err := repo.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}

		changed, err := mutate(auction)
		if err != nil {
			return nil, err
		}
		if !changed {
			return auction, nil
		}

		err = repo.UpdateAuction(ctx, auction)
		if err == nil {
			return auction, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}
