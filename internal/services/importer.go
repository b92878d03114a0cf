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

	"github.com/google/uuid"
)

const (
	jobTypeImport      = "auction_import"
	minManufactureYear = 1900
)

// ImportConsumer turns an import command into auctions, in bounded
// batches committed one transaction at a time. A durable checkpoint
// per correlation id makes the whole run resumable: after a crash the
// redelivered command picks up right behind the last committed batch,
// and committed rows are never reprocessed.
type ImportConsumer struct {
	repo        domain.AuctionRepository
	checkpoints domain.CheckpointStore
	jobs        *JobReporter
	pub         domain.Publisher
	batchSize   int
	log         logger.Logger
}

func NewImportConsumer(
	repo domain.AuctionRepository,
	checkpoints domain.CheckpointStore,
	jobs *JobReporter,
	pub domain.Publisher,
	batchSize int,
	log logger.Logger,
) *ImportConsumer {
	if batchSize < 1 {
		batchSize = 500
	}
	return &ImportConsumer{
		repo:        repo,
		checkpoints: checkpoints,
		jobs:        jobs,
		pub:         pub,
		batchSize:   batchSize,
		log:         log,
	}
}

func (c *ImportConsumer) HandleImport(ctx context.Context, data []byte) error {
	var cmd messages.ProcessAuctionImportCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.log.Error("Malformed import command", "error", err)
		return nil
	}

	c.log.Info("Import started",
		"correlation_id", cmd.CorrelationID, "seller", cmd.Seller, "rows", len(cmd.Rows))

	if err := c.jobs.RequestJob(ctx, cmd.CorrelationID, jobTypeImport, cmd.Requester,
		fmt.Sprintf("import of %d auctions for seller %s", len(cmd.Rows), cmd.Seller),
		len(cmd.Rows)); err != nil {
		c.log.Error("Failed to register import job", "correlation_id", cmd.CorrelationID, "error", err)
	}

	// Validation runs up front and is deterministic, so a resumed run
	// recomputes the identical error list for rows already committed.
	now := time.Now()
	auctionsByRow := make(map[int]*domain.Auction, len(cmd.Rows))
	var rowErrors []domain.ImportRowError
	for i, row := range cmd.Rows {
		rowNum := i + 1
		auction, errs := c.validateRow(&cmd, row, rowNum, now)
		if len(errs) > 0 {
			rowErrors = append(rowErrors, errs...)
			continue
		}
		auctionsByRow[rowNum] = auction
	}

	failedByRow := make(map[int]bool, len(cmd.Rows))
	for _, re := range rowErrors {
		failedByRow[re.Row] = true
	}

	lastDone, succeeded, failed, err := c.resumePoint(ctx, cmd.CorrelationID)
	if err != nil {
		return err
	}

	for lastDone < len(cmd.Rows) {
		batchEnd := lastDone + c.batchSize
		if batchEnd > len(cmd.Rows) {
			batchEnd = len(cmd.Rows)
		}

		var batch []*domain.Auction
		batchFailed := 0
		for rowNum := lastDone + 1; rowNum <= batchEnd; rowNum++ {
			if failedByRow[rowNum] {
				batchFailed++
				continue
			}
			batch = append(batch, auctionsByRow[rowNum])
		}

		if len(batch) > 0 {
			if err := c.repo.CreateAuctions(ctx, batch); err != nil {
				// Checkpoint still points at the previous batch; the
				// redelivered command resumes from there.
				return fmt.Errorf("import batch ending at row %d: %w", batchEnd, err)
			}
		}

		lastDone = batchEnd
		succeeded += len(batch)
		failed += batchFailed

		if err := c.checkpoints.SaveCheckpoint(ctx, &domain.ImportCheckpoint{
			CorrelationID:    cmd.CorrelationID,
			LastProcessedRow: lastDone,
			Succeeded:        succeeded,
			Failed:           failed,
		}); err != nil {
			return fmt.Errorf("save import checkpoint: %w", err)
		}

		c.jobs.ReportProgress(ctx, cmd.CorrelationID, succeeded, failed)
		c.log.Info("Import batch committed",
			"correlation_id", cmd.CorrelationID, "last_row", lastDone,
			"succeeded", succeeded, "failed", failed)

		// Cancellation is honored only between batches so the
		// checkpoint always matches exactly what committed.
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	// The checkpoint outlives the completion publish. If the publish
	// fails, the redelivered command resumes at the final row, commits
	// nothing, and re-emits the same event; only then is the checkpoint
	// dropped. Deleting first would make a redelivery start from row
	// one and re-insert every committed row under fresh ids.
	event := messages.AuctionImportCompletedEvent{
		CorrelationID: cmd.CorrelationID,
		Succeeded:     succeeded,
		Failed:        failed,
		Errors:        rowErrors,
	}
	if err := c.pub.Publish(ctx, messages.SubjectImportCompleted, event); err != nil {
		return err
	}

	if err := c.checkpoints.DeleteCheckpoint(ctx, cmd.CorrelationID); err != nil {
		c.log.Error("Failed to delete import checkpoint",
			"correlation_id", cmd.CorrelationID, "error", err)
	}

	c.log.Info("Import completed",
		"correlation_id", cmd.CorrelationID, "succeeded", succeeded, "failed", failed)
	return nil
}

func (c *ImportConsumer) resumePoint(ctx context.Context, correlationID string) (lastDone, succeeded, failed int, err error) {
	cp, err := c.checkpoints.GetCheckpoint(ctx, correlationID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read import checkpoint: %w", err)
	}

	c.log.Info("Resuming import from checkpoint",
		"correlation_id", correlationID, "last_row", cp.LastProcessedRow,
		"succeeded", cp.Succeeded, "failed", cp.Failed)
	return cp.LastProcessedRow, cp.Succeeded, cp.Failed, nil
}

func (c *ImportConsumer) validateRow(cmd *messages.ProcessAuctionImportCommand, row messages.ImportRow, rowNum int, now time.Time) (*domain.Auction, []domain.ImportRowError) {
	var errs []domain.ImportRowError
	fail := func(field, message string) {
		errs = append(errs, domain.ImportRowError{Row: rowNum, Field: field, Message: message})
	}

	if row.Title == "" {
		fail("title", "title is required")
	}
	if row.Description == "" {
		fail("description", "description is required")
	}
	if row.ReservePrice < 0 {
		fail("reservePrice", "reserve price must not be negative")
	}
	if row.BuyNowPrice != nil && *row.BuyNowPrice <= row.ReservePrice {
		fail("buyNowPrice", "buy-now price must exceed reserve price")
	}
	if !row.AuctionEnd.After(now) {
		fail("auctionEnd", "auction end must be in the future")
	}
	if row.ManufactureYear < minManufactureYear || row.ManufactureYear > now.Year()+1 {
		fail("manufactureYear",
			fmt.Sprintf("manufacture year must be between %d and %d", minManufactureYear, now.Year()+1))
	}

	if len(errs) > 0 {
		return nil, errs
	}

	attributes := make(map[string]string, len(row.Attributes)+1)
	for k, v := range row.Attributes {
		attributes[k] = v
	}
	attributes["manufacture_year"] = fmt.Sprintf("%d", row.ManufactureYear)

	return &domain.Auction{
		ID:       uuid.NewString(),
		SellerID: cmd.SellerID,
		Seller:   cmd.Seller,
		Item: domain.Item{
			Title:       row.Title,
			Description: row.Description,
			Condition:   row.Condition,
			Category:    row.Category,
			Brand:       row.Brand,
			Attributes:  attributes,
			FileRefs:    row.FileRefs,
		},
		ReservePrice: row.ReservePrice,
		BuyNowPrice:  row.BuyNowPrice,
		Currency:     row.Currency,
		Status:       domain.AuctionScheduled,
		AuctionEnd:   row.AuctionEnd,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}, nil
}
