package services

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-service/internal/domain"
	"auction-service/internal/export"
	"auction-service/internal/messages"
	"auction-service/pkg/logger"
)

const jobTypeExport = "auction_export"

// ExportConsumer is one-shot: filter, render through the exporter
// picked by format, store the file, report a single progress unit. An
// unknown format fails the job immediately; there is no default.
type ExportConsumer struct {
	repo  domain.AuctionRepository
	files domain.FileStore
	jobs  *JobReporter
	pub   domain.Publisher
	log   logger.Logger
}

func NewExportConsumer(
	repo domain.AuctionRepository,
	files domain.FileStore,
	jobs *JobReporter,
	pub domain.Publisher,
	log logger.Logger,
) *ExportConsumer {
	return &ExportConsumer{
		repo:  repo,
		files: files,
		jobs:  jobs,
		pub:   pub,
		log:   log,
	}
}

func (c *ExportConsumer) HandleExport(ctx context.Context, data []byte) error {
	var cmd messages.ProcessAuctionExportCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.log.Error("Malformed export command", "error", err)
		return nil
	}

	c.log.Info("Export started",
		"correlation_id", cmd.CorrelationID, "format", cmd.Format)

	if err := c.jobs.RequestJob(ctx, cmd.CorrelationID, jobTypeExport, cmd.Requester,
		fmt.Sprintf("auction export as %s", cmd.Format), 1); err != nil {
		c.log.Error("Failed to register export job", "correlation_id", cmd.CorrelationID, "error", err)
	}

	exporter, ok := export.For(cmd.Format)
	if !ok {
		c.log.Warn("Unsupported export format",
			"correlation_id", cmd.CorrelationID, "format", cmd.Format)
		c.jobs.FailJob(ctx, cmd.CorrelationID,
			fmt.Sprintf("unsupported export format %q", cmd.Format))
		return c.pub.Publish(ctx, messages.SubjectExportCompleted, messages.AuctionExportCompletedEvent{
			CorrelationID: cmd.CorrelationID,
			Format:        cmd.Format,
		})
	}

	filter, err := c.buildFilter(cmd.Filter)
	if err != nil {
		c.jobs.FailJob(ctx, cmd.CorrelationID, err.Error())
		return c.pub.Publish(ctx, messages.SubjectExportCompleted, messages.AuctionExportCompletedEvent{
			CorrelationID: cmd.CorrelationID,
			Format:        cmd.Format,
		})
	}

	auctions, err := c.repo.SearchAuctions(ctx, filter)
	if err != nil {
		return fmt.Errorf("export query: %w", err)
	}

	rows := make([]export.Row, 0, len(auctions))
	for _, auction := range auctions {
		rows = append(rows, export.RowFromAuction(auction))
	}

	fileData, contentType, extension, err := exporter.Export(rows)
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	fileName := fmt.Sprintf("auction-export-%s.%s", cmd.CorrelationID, extension)
	if err := c.files.SaveFile(ctx, fileName, contentType, fileData); err != nil {
		return fmt.Errorf("store export file: %w", err)
	}

	c.jobs.ReportProgress(ctx, cmd.CorrelationID, 1, 0)

	event := messages.AuctionExportCompletedEvent{
		CorrelationID: cmd.CorrelationID,
		Format:        cmd.Format,
		FileName:      fileName,
		ContentType:   contentType,
		RecordCount:   len(rows),
	}
	if err := c.pub.Publish(ctx, messages.SubjectExportCompleted, event); err != nil {
		return err
	}

	c.log.Info("Export completed",
		"correlation_id", cmd.CorrelationID, "file", fileName, "records", len(rows))
	return nil
}

func (c *ExportConsumer) buildFilter(f messages.ExportFilter) (domain.AuctionFilter, error) {
	filter := domain.AuctionFilter{
		SellerID: f.SellerID,
		From:     f.From,
		To:       f.To,
	}
	for _, name := range f.Statuses {
		status, ok := domain.ParseStatus(name)
		if !ok {
			return domain.AuctionFilter{}, fmt.Errorf("unknown auction status %q", name)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}
