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

const jobTypeBulkUpdate = "bulk_auction_update"

// BulkUpdateConsumer walks an explicit id list and applies a guarded
// activate/deactivate per auction. It keeps no checkpoint: the list is
// small and bounded, and a full reprocess is itself idempotent, so
// redelivery simply re-runs it.
type BulkUpdateConsumer struct {
	repo             domain.AuctionRepository
	jobs             *JobReporter
	pub              domain.Publisher
	progressInterval int
	attempts         int
	log              logger.Logger
}

func NewBulkUpdateConsumer(
	repo domain.AuctionRepository,
	jobs *JobReporter,
	pub domain.Publisher,
	progressInterval int,
	attempts int,
	log logger.Logger,
) *BulkUpdateConsumer {
	if progressInterval < 1 {
		progressInterval = 100
	}
	return &BulkUpdateConsumer{
		repo:             repo,
		jobs:             jobs,
		pub:              pub,
		progressInterval: progressInterval,
		attempts:         attempts,
		log:              log,
	}
}

func (c *BulkUpdateConsumer) HandleBulkUpdate(ctx context.Context, data []byte) error {
	var cmd messages.ProcessBulkAuctionUpdateCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.log.Error("Malformed bulk-update command", "error", err)
		return nil
	}

	action := "deactivate"
	if cmd.Activate {
		action = "activate"
	}
	c.log.Info("Bulk update started",
		"correlation_id", cmd.CorrelationID, "action", action, "auctions", len(cmd.AuctionIDs))

	if err := c.jobs.RequestJob(ctx, cmd.CorrelationID, jobTypeBulkUpdate, cmd.Requester,
		fmt.Sprintf("%s %d auctions", action, len(cmd.AuctionIDs)), len(cmd.AuctionIDs)); err != nil {
		c.log.Error("Failed to register bulk-update job", "correlation_id", cmd.CorrelationID, "error", err)
	}

	succeeded, failed := 0, 0
	now := time.Now()
	for i, auctionID := range cmd.AuctionIDs {
		err := c.applyStatusChange(ctx, auctionID, cmd.Activate, now)
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrNotFound) || domain.IsRuleError(err):
			c.log.Warn("Bulk update skipped auction",
				"auction_id", auctionID, "action", action, "reason", err.Error())
			failed++
		default:
			// Transient infrastructure failure: let the bus redeliver
			// the whole command; reprocessing is idempotent.
			return err
		}

		if (i+1)%c.progressInterval == 0 {
			c.jobs.ReportProgress(ctx, cmd.CorrelationID, succeeded, failed)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	c.jobs.ReportProgress(ctx, cmd.CorrelationID, succeeded, failed)

	event := messages.BulkAuctionUpdateCompletedEvent{
		CorrelationID: cmd.CorrelationID,
		Succeeded:     succeeded,
		Failed:        failed,
	}
	if err := c.pub.Publish(ctx, messages.SubjectBulkUpdateDone, event); err != nil {
		return err
	}

	c.log.Info("Bulk update completed",
		"correlation_id", cmd.CorrelationID, "succeeded", succeeded, "failed", failed)
	return nil
}

func (c *BulkUpdateConsumer) applyStatusChange(ctx context.Context, auctionID string, activate bool, now time.Time) error {
	_, err := mutateAuction(ctx, c.repo, auctionID, c.attempts, func(a *domain.Auction) (bool, error) {
		if activate {
			if err := a.Activate(now); err != nil {
				return false, err
			}
		} else {
			if err := a.Deactivate(); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	return err
}
