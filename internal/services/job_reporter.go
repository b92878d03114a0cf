package services

import (
	"context"

	"auction-service/internal/domain"
	"auction-service/internal/messages"
	"auction-service/pkg/logger"
)

// JobReporter is the one-way channel to the Job-tracking service. The
// coordinator only ever reports; it never reads job state back.
type JobReporter struct {
	pub domain.Publisher
	log logger.Logger
}

func NewJobReporter(pub domain.Publisher, log logger.Logger) *JobReporter {
	return &JobReporter{pub: pub, log: log}
}

func (r *JobReporter) RequestJob(ctx context.Context, correlationID, jobType, requester, summary string, totalItems int) error {
	cmd := messages.RequestJobCommand{
		CorrelationID:  correlationID,
		JobType:        jobType,
		Requester:      requester,
		PayloadSummary: summary,
		TotalItems:     totalItems,
	}
	return r.pub.Publish(ctx, messages.SubjectRequestJob, cmd)
}

// ReportProgress publishes cumulative completed/failed counts after a
// batch commits.
func (r *JobReporter) ReportProgress(ctx context.Context, correlationID string, completed, failed int) {
	cmd := messages.ReportJobBatchProgressCommand{
		CorrelationID:  correlationID,
		CompletedCount: completed,
		FailedCount:    failed,
	}
	if err := r.pub.Publish(ctx, messages.SubjectJobProgress, cmd); err != nil {
		// Progress is a projection maintained elsewhere; a lost report
		// must not fail the batch that already committed.
		r.log.Error("Failed to report job progress", "correlation_id", correlationID, "error", err)
	}
}

func (r *JobReporter) FailJob(ctx context.Context, correlationID, message string) {
	cmd := messages.FailJobByCorrelationCommand{
		CorrelationID: correlationID,
		ErrorMessage:  message,
	}
	if err := r.pub.Publish(ctx, messages.SubjectJobFail, cmd); err != nil {
		r.log.Error("Failed to report job failure", "correlation_id", correlationID, "error", err)
	}
}
