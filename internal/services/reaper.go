package services

import (
	"context"
	"time"

	"auction-service/internal/domain"
	"auction-service/internal/messages"
	"auction-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ReservationReaper frees auctions stuck in the reserved state when
// the Order service never completed or released them. It acts purely
// through the bus: it publishes the same release command any other
// caller would, so the saga handlers stay the single writer path.
// Leader election keeps multiple worker instances from double-scanning.
type ReservationReaper struct {
	repo           domain.AuctionRepository
	pub            domain.Publisher
	leaderElection domain.LeaderElection
	cron           *cron.Cron
	instanceID     string
	reservationTTL time.Duration
	scanSpec       string
	log            logger.Logger
}

func NewReservationReaper(
	repo domain.AuctionRepository,
	pub domain.Publisher,
	leaderElection domain.LeaderElection,
	instanceID string,
	reservationTTL time.Duration,
	scanSpec string,
	log logger.Logger,
) *ReservationReaper {
	return &ReservationReaper{
		repo:           repo,
		pub:            pub,
		leaderElection: leaderElection,
		cron:           cron.New(cron.WithSeconds()),
		instanceID:     instanceID,
		reservationTTL: reservationTTL,
		scanSpec:       scanSpec,
		log:            log,
	}
}

func (r *ReservationReaper) Start(ctx context.Context) error {
	r.log.Info("Starting reservation reaper",
		"reservation_ttl", r.reservationTTL, "scan_spec", r.scanSpec)

	_, err := r.cron.AddFunc(r.scanSpec, func() {
		r.scan(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

func (r *ReservationReaper) Stop() error {
	r.log.Info("Stopping reservation reaper")
	r.cron.Stop()
	return nil
}

func (r *ReservationReaper) scan(ctx context.Context) {
	isLeader, err := r.leaderElection.IsLeader(ctx, r.instanceID)
	if err != nil {
		r.log.Error("Leader check failed", "error", err)
		return
	}
	if !isLeader {
		return
	}

	stuck, err := r.repo.GetStuckReservations(ctx, time.Now().Add(-r.reservationTTL))
	if err != nil {
		r.log.Error("Failed to scan for stuck reservations", "error", err)
		return
	}

	for _, auction := range stuck {
		cmd := messages.ReleaseAuctionReservation{
			CorrelationID: uuid.NewString(),
			AuctionID:     auction.ID,
			Reason:        "buy-now reservation expired",
		}
		if err := r.pub.Publish(ctx, messages.SubjectReleaseBuyNow, cmd); err != nil {
			r.log.Error("Failed to publish expiry release",
				"auction_id", auction.ID, "error", err)
			continue
		}
		r.log.Warn("Expired reservation released",
			"auction_id", auction.ID, "reserved_since", auction.UpdatedAt)
	}
}
