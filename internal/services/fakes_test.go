package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"auction-service/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

// memRepo mimics the MySQL repository including its version check, so
// the conflict-retry paths are exercised for real.
type memRepo struct {
	mu       sync.Mutex
	auctions map[string]*domain.Auction

	// failCreateOnCall makes the n-th CreateAuctions call (1-based)
	// fail once, simulating a crash between batches.
	failCreateOnCall int
	createCalls      int
	updateBatchCalls int

	// forceConflicts makes the next n UpdateAuction calls report a
	// stale version before the write goes through.
	forceConflicts int
}

func newMemRepo(auctions ...*domain.Auction) *memRepo {
	repo := &memRepo{auctions: make(map[string]*domain.Auction)}
	for _, a := range auctions {
		repo.auctions[a.ID] = copyAuction(a)
	}
	return repo
}

func copyAuction(a *domain.Auction) *domain.Auction {
	c := *a
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		c.BuyNowPrice = &v
	}
	if a.CurrentHighBid != nil {
		v := *a.CurrentHighBid
		c.CurrentHighBid = &v
	}
	if a.Item.Attributes != nil {
		c.Item.Attributes = make(map[string]string, len(a.Item.Attributes))
		for k, v := range a.Item.Attributes {
			c.Item.Attributes[k] = v
		}
	}
	c.Item.FileRefs = append([]string(nil), a.Item.FileRefs...)
	return &c
}

func (r *memRepo) get(id string) *domain.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok {
		return copyAuction(a)
	}
	return nil
}

func (r *memRepo) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAuction(a), nil
}

func (r *memRepo) UpdateAuction(_ context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceConflicts > 0 {
		r.forceConflicts--
		return domain.ErrConflict
	}
	stored, ok := r.auctions[auction.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != auction.Version {
		return domain.ErrConflict
	}
	auction.Version++
	r.auctions[auction.ID] = copyAuction(auction)
	return nil
}

func (r *memRepo) CreateAuctions(_ context.Context, auctions []*domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createCalls == r.failCreateOnCall {
		r.failCreateOnCall = 0
		return fmt.Errorf("database gone away")
	}
	for _, a := range auctions {
		if _, exists := r.auctions[a.ID]; exists {
			return fmt.Errorf("duplicate auction %s", a.ID)
		}
	}
	for _, a := range auctions {
		r.auctions[a.ID] = copyAuction(a)
	}
	return nil
}

func (r *memRepo) UpdateAuctions(ctx context.Context, auctions []*domain.Auction) error {
	r.mu.Lock()
	r.updateBatchCalls++
	r.mu.Unlock()
	for _, a := range auctions {
		if err := r.UpdateAuction(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRepo) GetActiveAuctionsBySeller(_ context.Context, sellerID string) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Auction
	for _, a := range r.auctions {
		if a.SellerID == sellerID && !a.Status.Terminal() {
			result = append(result, copyAuction(a))
		}
	}
	return result, nil
}

func (r *memRepo) GetFinishedAuctionsBySeller(_ context.Context, sellerID string) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Auction
	for _, a := range r.auctions {
		if a.SellerID == sellerID && a.Status == domain.AuctionFinished {
			result = append(result, copyAuction(a))
		}
	}
	return result, nil
}

func (r *memRepo) GetAuctionsByUser(_ context.Context, userID string) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Auction
	for _, a := range r.auctions {
		if a.SellerID == userID || a.WinnerID == userID {
			result = append(result, copyAuction(a))
		}
	}
	return result, nil
}

func (r *memRepo) SearchAuctions(_ context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Auction
	for _, a := range r.auctions {
		if filter.SellerID != "" && a.SellerID != filter.SellerID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				if a.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, copyAuction(a))
	}
	return result, nil
}

func (r *memRepo) GetStuckReservations(_ context.Context, olderThan time.Time) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Auction
	for _, a := range r.auctions {
		if a.Status == domain.AuctionReservedForBuyNow && a.UpdatedAt.Before(olderThan) {
			result = append(result, copyAuction(a))
		}
	}
	return result, nil
}

type published struct {
	subject string
	message interface{}
}

type fakeBus struct {
	mu        sync.Mutex
	published []published

	// failSubject makes the next failCount publishes to that subject
	// fail, simulating a broker outage mid-handler.
	failSubject string
	failCount   int
}

func (b *fakeBus) Publish(_ context.Context, subject string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subject == b.failSubject && b.failCount > 0 {
		b.failCount--
		return fmt.Errorf("broker unavailable")
	}
	b.published = append(b.published, published{subject: subject, message: message})
	return nil
}

func (b *fakeBus) onSubject(subject string) []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []interface{}
	for _, p := range b.published {
		if p.subject == subject {
			result = append(result, p.message)
		}
	}
	return result
}

type fakeCheckpoints struct {
	mu          sync.Mutex
	checkpoints map[string]*domain.ImportCheckpoint
	saves       int
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{checkpoints: make(map[string]*domain.ImportCheckpoint)}
}

func (s *fakeCheckpoints) GetCheckpoint(_ context.Context, correlationID string) (*domain.ImportCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[correlationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *cp
	return &c, nil
}

func (s *fakeCheckpoints) SaveCheckpoint(_ context.Context, cp *domain.ImportCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	c := *cp
	s.checkpoints[cp.CorrelationID] = &c
	return nil
}

func (s *fakeCheckpoints) DeleteCheckpoint(_ context.Context, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, correlationID)
	return nil
}

type fakeFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeFileStore) SaveFile(_ context.Context, name, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	s.types[name] = contentType
	return nil
}

func liveAuction(id, sellerID, seller string, buyNow *float64) *domain.Auction {
	return &domain.Auction{
		ID:           id,
		SellerID:     sellerID,
		Seller:       seller,
		Item:         domain.Item{Title: "Vintage camera " + id, Description: "desc"},
		ReservePrice: 50,
		BuyNowPrice:  buyNow,
		Currency:     "EUR",
		Status:       domain.AuctionLive,
		AuctionEnd:   time.Now().Add(24 * time.Hour),
		CreatedAt:    time.Now().Add(-time.Hour),
		UpdatedAt:    time.Now().Add(-time.Hour),
		Version:      1,
	}
}

func price(v float64) *float64 {
	return &v
}

func mustJSON(t interface{ Fatalf(string, ...interface{}) }, v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
