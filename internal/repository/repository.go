package repository

//go:generate mockgen -source=repository.go -destination=mock_store.go -package=repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	model "auction-house/internal/models"
)

// BidCheck re-validates a candidate bid against the auction row as read
// inside the commit's atomic scope. Returning an error aborts the commit.
type BidCheck func(a model.Auction) error

// TransitionCheck guards a status transition against the auction row as read
// inside the transition's atomic scope.
type TransitionCheck func(a model.Auction) error

// CommitBidResult is the outcome of a successful atomic bid commit.
type CommitBidResult struct {
	Bid     model.Bid
	Auction model.Auction
	// OutbidUserID is the previous winning bidder when different from the
	// new bidder, empty otherwise.
	OutbidUserID string
}

// ListAuctionsParams filters and paginates auction listings.
type ListAuctionsParams struct {
	Status   string
	SellerID string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SortBy   string
	Asc      bool
	Limit    int
	Offset   int
}

// AuctionStore defines the persistence interface for the auction system.
// CommitBid and TransitionStatus are internally atomic: concurrent calls for
// the same auction id serialize against each other, and the supplied check
// runs against the freshly-read row before any write.
type AuctionStore interface {
	CreateAuction(ctx context.Context, a *model.Auction) error
	GetAuction(ctx context.Context, id string) (model.Auction, error)
	ListAuctions(ctx context.Context, params ListAuctionsParams) ([]model.Auction, int64, error)
	DeleteAuction(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error

	CommitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal, check BidCheck) (CommitBidResult, error)
	TransitionStatus(ctx context.Context, auctionID string, next model.AuctionStatus, check TransitionCheck) (model.Auction, error)

	ListBids(ctx context.Context, auctionID string, limit, offset int) ([]model.Bid, int64, error)
	ListBidsByBidder(ctx context.Context, bidderID string, limit, offset int) ([]model.Bid, int64, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	ListDistinctBidders(ctx context.Context, auctionID string) ([]string, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Auction, error)

	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error)
}
