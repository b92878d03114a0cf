package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auction-service/internal/domain"
	"auction-service/internal/messages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkActivateGuardsPastEndDate(t *testing.T) {
	ok := liveAuction("a1", "s1", "bob", nil)
	ok.Status = domain.AuctionScheduled

	expired := liveAuction("a2", "s1", "bob", nil)
	expired.Status = domain.AuctionScheduled
	expired.AuctionEnd = time.Now().Add(-time.Hour)

	repo := newMemRepo(ok, expired)
	bus := &fakeBus{}
	consumer := NewBulkUpdateConsumer(repo, NewJobReporter(bus, nopLogger{}), bus, 100, 3, nopLogger{})

	cmd := messages.ProcessBulkAuctionUpdateCommand{
		CorrelationID: "bulk-1", Requester: "admin",
		AuctionIDs: []string{"a1", "a2"}, Activate: true,
	}
	require.NoError(t, consumer.HandleBulkUpdate(context.Background(), mustJSON(t, cmd)))

	assert.Equal(t, domain.AuctionLive, repo.get("a1").Status)
	assert.Equal(t, domain.AuctionScheduled, repo.get("a2").Status)

	completed := bus.onSubject(messages.SubjectBulkUpdateDone)
	require.Len(t, completed, 1)
	event := completed[0].(messages.BulkAuctionUpdateCompletedEvent)
	assert.Equal(t, 1, event.Succeeded)
	assert.Equal(t, 1, event.Failed)
}

func TestBulkDeactivate(t *testing.T) {
	repo := newMemRepo(liveAuction("a1", "s1", "bob", nil), liveAuction("a2", "s1", "bob", nil))
	bus := &fakeBus{}
	consumer := NewBulkUpdateConsumer(repo, NewJobReporter(bus, nopLogger{}), bus, 100, 3, nopLogger{})

	cmd := messages.ProcessBulkAuctionUpdateCommand{
		CorrelationID: "bulk-2", AuctionIDs: []string{"a1", "a2", "ghost"}, Activate: false,
	}
	require.NoError(t, consumer.HandleBulkUpdate(context.Background(), mustJSON(t, cmd)))

	assert.Equal(t, domain.AuctionInactive, repo.get("a1").Status)
	assert.Equal(t, domain.AuctionInactive, repo.get("a2").Status)

	event := bus.onSubject(messages.SubjectBulkUpdateDone)[0].(messages.BulkAuctionUpdateCompletedEvent)
	assert.Equal(t, 2, event.Succeeded)
	assert.Equal(t, 1, event.Failed) // the unknown id
}

func TestBulkUpdateReportsProgressAtInterval(t *testing.T) {
	var auctions []*domain.Auction
	var ids []string
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("a%d", i)
		auctions = append(auctions, liveAuction(id, "s1", "bob", nil))
		ids = append(ids, id)
	}
	repo := newMemRepo(auctions...)
	bus := &fakeBus{}
	consumer := NewBulkUpdateConsumer(repo, NewJobReporter(bus, nopLogger{}), bus, 10, 3, nopLogger{})

	cmd := messages.ProcessBulkAuctionUpdateCommand{CorrelationID: "bulk-3", AuctionIDs: ids, Activate: false}
	require.NoError(t, consumer.HandleBulkUpdate(context.Background(), mustJSON(t, cmd)))

	// Two interval reports plus the final one.
	progress := bus.onSubject(messages.SubjectJobProgress)
	require.Len(t, progress, 3)
	final := progress[2].(messages.ReportJobBatchProgressCommand)
	assert.Equal(t, 25, final.CompletedCount)
}

func TestBulkUpdateReprocessingIsIdempotent(t *testing.T) {
	auction := liveAuction("a1", "s1", "bob", nil)
	auction.Status = domain.AuctionScheduled
	repo := newMemRepo(auction)
	bus := &fakeBus{}
	consumer := NewBulkUpdateConsumer(repo, NewJobReporter(bus, nopLogger{}), bus, 100, 3, nopLogger{})

	cmd := mustJSON(t, messages.ProcessBulkAuctionUpdateCommand{
		CorrelationID: "bulk-4", AuctionIDs: []string{"a1"}, Activate: true,
	})
	require.NoError(t, consumer.HandleBulkUpdate(context.Background(), cmd))

	// A redelivered command re-runs in full; the second activation is
	// refused by the status guard and counted failed, state unchanged.
	require.NoError(t, consumer.HandleBulkUpdate(context.Background(), cmd))
	assert.Equal(t, domain.AuctionLive, repo.get("a1").Status)

	events := bus.onSubject(messages.SubjectBulkUpdateDone)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].(messages.BulkAuctionUpdateCompletedEvent).Succeeded)
	assert.Equal(t, 1, events[1].(messages.BulkAuctionUpdateCompletedEvent).Failed)
}
