package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/utils"
)

// MemoryStore is a concurrency-safe in-memory implementation of AuctionStore.
// The mutex is the serialization point: commits and transitions for any
// auction run one at a time, which gives the same per-auction total order
// the SQL store gets from row locking.
type MemoryStore struct {
	mu            sync.RWMutex
	auctions      map[string]model.Auction
	bids          map[string][]model.Bid // key: auctionID, append-only
	notifications map[string][]model.Notification
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions:      make(map[string]model.Auction),
		bids:          make(map[string][]model.Bid),
		notifications: make(map[string][]model.Notification),
	}
}

func (s *MemoryStore) CreateAuction(_ context.Context, a *model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[a.ID]; ok {
		return fmt.Errorf("create auction %s: duplicate id", a.ID)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.auctions[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAuction(_ context.Context, id string) (model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	return a, nil
}

func (s *MemoryStore) ListAuctions(_ context.Context, params ListAuctionsParams) ([]model.Auction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if params.Status != "" && string(a.Status) != params.Status {
			continue
		}
		if params.SellerID != "" && a.SellerID != params.SellerID {
			continue
		}
		if params.Search != "" {
			needle := strings.ToLower(params.Search)
			if !strings.Contains(strings.ToLower(a.Title), needle) &&
				!strings.Contains(strings.ToLower(a.Description), needle) {
				continue
			}
		}
		if params.MinPrice != nil && a.CurrentPrice.LessThan(*params.MinPrice) {
			continue
		}
		if params.MaxPrice != nil && a.CurrentPrice.GreaterThan(*params.MaxPrice) {
			continue
		}
		matched = append(matched, a)
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch params.SortBy {
		case "current_price":
			less = matched[i].CurrentPrice.LessThan(matched[j].CurrentPrice)
		case "end_time":
			less = matched[i].EndTime.Before(matched[j].EndTime)
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if params.Asc {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	matched = paginate(matched, params.Limit, params.Offset)
	return matched, total, nil
}

func (s *MemoryStore) DeleteAuction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return fmt.Errorf("delete auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	if a.TotalBids > 0 {
		return fmt.Errorf("delete auction %s: %w", id, auctionerrors.ErrAuctionHasBids)
	}
	delete(s.auctions, id)
	return nil
}

func (s *MemoryStore) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return fmt.Errorf("increment views for auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	a.Views++
	s.auctions[id] = a
	return nil
}

// CommitBid applies a validated bid as one atomic unit: the check runs
// against the current row, the bid row is appended with the winning flag,
// the previous winner is flipped, and the auction aggregates advance.
func (s *MemoryStore) CommitBid(_ context.Context, auctionID, bidderID string, amount decimal.Decimal, check BidCheck) (CommitBidResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return CommitBidResult{}, fmt.Errorf("commit bid for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if check != nil {
		if err := check(a); err != nil {
			return CommitBidResult{}, err
		}
	}

	now := time.Now().UTC()
	var outbid string
	existing := s.bids[auctionID]
	for i := range existing {
		if existing[i].IsWinning {
			existing[i].IsWinning = false
			if existing[i].BidderID != bidderID {
				outbid = existing[i].BidderID
			}
		}
	}

	bid := model.Bid{
		ID:        utils.GenerateID(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		IsWinning: true,
		CreatedAt: now,
	}
	s.bids[auctionID] = append(existing, bid)

	a.CurrentPrice = amount
	a.TotalBids++
	a.UpdatedAt = now
	s.auctions[auctionID] = a

	return CommitBidResult{Bid: bid, Auction: a, OutbidUserID: outbid}, nil
}

// TransitionStatus moves an auction to the next status after the check
// approves the transition against the current row.
func (s *MemoryStore) TransitionStatus(_ context.Context, auctionID string, next model.AuctionStatus, check TransitionCheck) (model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("transition auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if check != nil {
		if err := check(a); err != nil {
			return model.Auction{}, err
		}
	}

	now := time.Now().UTC()
	a.Status = next
	switch next {
	case model.StatusActive:
		a.StartTime = &now
	case model.StatusEnded:
		// Manual early end closes the window now; a deadline expiry keeps
		// the original end_time.
		if a.EndTime.After(now) {
			a.EndTime = now
		}
	}
	a.UpdatedAt = now
	s.auctions[auctionID] = a
	return a, nil
}

func (s *MemoryStore) ListBids(_ context.Context, auctionID string, limit, offset int) ([]model.Bid, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := append([]model.Bid(nil), s.bids[auctionID]...)
	// Most recent first, matching the SQL store's created_at DESC order.
	sort.Slice(bids, func(i, j int) bool { return bids[i].CreatedAt.After(bids[j].CreatedAt) })
	total := int64(len(bids))
	return paginate(bids, limit, offset), total, nil
}

func (s *MemoryStore) ListBidsByBidder(_ context.Context, bidderID string, limit, offset int) ([]model.Bid, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bids []model.Bid
	for _, list := range s.bids {
		for _, b := range list {
			if b.BidderID == bidderID {
				bids = append(bids, b)
			}
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].CreatedAt.After(bids[j].CreatedAt) })
	total := int64(len(bids))
	return paginate(bids, limit, offset), total, nil
}

func (s *MemoryStore) GetWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bids[auctionID] {
		if b.IsWinning {
			return b, nil
		}
	}
	return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
}

func (s *MemoryStore) ListDistinctBidders(_ context.Context, auctionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var bidders []string
	for _, b := range s.bids[auctionID] {
		if !seen[b.BidderID] {
			seen[b.BidderID] = true
			bidders = append(bidders, b.BidderID)
		}
	}
	return bidders, nil
}

func (s *MemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []model.Auction
	for _, a := range s.auctions {
		if a.Status == model.StatusActive && !a.EndTime.After(now) {
			expired = append(expired, a)
			if limit > 0 && len(expired) >= limit {
				break
			}
		}
	}
	return expired, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = utils.GenerateID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications[n.UserID] = append(s.notifications[n.UserID], *n)
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := append([]model.Notification(nil), s.notifications[userID]...)
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return paginate(list, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
