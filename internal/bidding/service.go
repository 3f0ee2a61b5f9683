package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
)

// Events receives the outcome of a successful commit. Implementations must
// not block the calling request path.
type Events interface {
	BidPlaced(res repository.CommitBidResult)
}

// Service is the bid transaction engine. Both transports (HTTP handlers and
// the websocket channel) drive the same instance.
type Service struct {
	store  repository.AuctionStore
	events Events
	now    func() time.Time
}

// NewService creates a new bidding Service instance
func NewService(store repository.AuctionStore, events Events) *Service {
	return &Service{
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBid validates and commits a bid. Validation runs twice: once against
// a snapshot for a fast rejection, and again by the store against the row it
// reads under lock, which closes the window where another bid commits
// between validation and commit. Fan-out fires exactly once per successful
// commit and never fails the bid.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (repository.CommitBidResult, error) {
	if auctionID == "" || bidderID == "" {
		return repository.CommitBidResult{}, fmt.Errorf("service: %w - missing auctionID or bidderID", auctionerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return repository.CommitBidResult{}, fmt.Errorf("service: %w - non-positive bid amount", auctionerrors.ErrInvalidBid)
	}

	snapshot, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return repository.CommitBidResult{}, fmt.Errorf("service: failed to read auction %s: %w", auctionID, err)
	}
	if err := ValidateBid(snapshot, bidderID, amount, s.now()); err != nil {
		return repository.CommitBidResult{}, err
	}

	res, err := s.store.CommitBid(ctx, auctionID, bidderID, amount, func(a model.Auction) error {
		return ValidateBid(a, bidderID, amount, s.now())
	})
	if err != nil {
		return repository.CommitBidResult{}, fmt.Errorf("service: failed to commit bid for auction %s by user %s: %w", auctionID, bidderID, err)
	}

	if s.events != nil {
		s.events.BidPlaced(res)
	}
	return res, nil
}

// GetBidsForAuction returns a page of bids for an auction, newest first.
func (s *Service) GetBidsForAuction(ctx context.Context, auctionID string, limit, offset int) ([]model.Bid, int64, error) {
	if auctionID == "" {
		return nil, 0, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}
	bids, total, err := s.store.ListBids(ctx, auctionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, total, nil
}

// GetWinningBid returns the bid currently flagged as winning.
func (s *Service) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	if auctionID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}
	bid, err := s.store.GetWinningBid(ctx, auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return bid, nil
}

// GetBidsByUser returns a page of a user's bids across auctions.
func (s *Service) GetBidsByUser(ctx context.Context, bidderID string, limit, offset int) ([]model.Bid, int64, error) {
	if bidderID == "" {
		return nil, 0, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidBid)
	}
	bids, total, err := s.store.ListBidsByBidder(ctx, bidderID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("service: failed to get bids for user %s: %w", bidderID, err)
	}
	return bids, total, nil
}
