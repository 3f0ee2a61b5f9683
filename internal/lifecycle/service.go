package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// Events receives committed lifecycle outcomes. Implementations must not
// block the calling request path.
type Events interface {
	AuctionStarted(a model.Auction)
	AuctionEnded(a model.Auction, winner *model.Bid)
	AuctionCancelled(a model.Auction, bidders []string)
}

// CreateAuctionParams carries seller input for a new DRAFT listing.
type CreateAuctionParams struct {
	SellerID        string
	CategoryID      string
	Title           string
	Description     string
	StartingPrice   decimal.Decimal
	ReservePrice    *decimal.Decimal
	MinBidIncrement decimal.Decimal
	EndTime         time.Time
	AutoExtend      bool
}

// Service is the auction lifecycle controller: it owns listing creation and
// the DRAFT -> ACTIVE -> ENDED/CANCELLED state machine, whether a transition
// is driven by a seller command, the deadline sweeper, or a read probe that
// observes an expired auction.
type Service struct {
	store             repository.AuctionStore
	events            Events
	minIncrementFloor decimal.Decimal
	now               func() time.Time
}

// NewService creates a new lifecycle Service instance
func NewService(store repository.AuctionStore, events Events, minIncrementFloor decimal.Decimal) *Service {
	if minIncrementFloor.IsZero() || minIncrementFloor.IsNegative() {
		minIncrementFloor = decimal.NewFromInt(1)
	}
	return &Service{
		store:             store,
		events:            events,
		minIncrementFloor: minIncrementFloor,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// CreateAuction records a new listing in DRAFT.
func (s *Service) CreateAuction(ctx context.Context, params CreateAuctionParams) (model.Auction, error) {
	if params.SellerID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - missing seller ID", auctionerrors.ErrInvalidAuction)
	}
	if strings.TrimSpace(params.Title) == "" {
		return model.Auction{}, fmt.Errorf("service: %w - missing title", auctionerrors.ErrInvalidAuction)
	}
	if !params.StartingPrice.IsPositive() {
		return model.Auction{}, fmt.Errorf("service: %w - non-positive starting price", auctionerrors.ErrInvalidAuction)
	}
	if !params.EndTime.After(s.now()) {
		return model.Auction{}, fmt.Errorf("service: %w - end time must be in the future", auctionerrors.ErrInvalidAuction)
	}
	increment := params.MinBidIncrement
	if increment.IsZero() {
		increment = s.minIncrementFloor
	}
	if increment.LessThan(s.minIncrementFloor) {
		return model.Auction{}, fmt.Errorf("service: %w - min bid increment below floor of %s",
			auctionerrors.ErrInvalidAuction, s.minIncrementFloor.StringFixed(2))
	}

	a := model.Auction{
		ID:              utils.GenerateID(),
		SellerID:        params.SellerID,
		CategoryID:      params.CategoryID,
		Title:           strings.TrimSpace(params.Title),
		Description:     params.Description,
		StartingPrice:   params.StartingPrice,
		CurrentPrice:    params.StartingPrice,
		ReservePrice:    params.ReservePrice,
		MinBidIncrement: increment,
		Status:          model.StatusDraft,
		EndTime:         params.EndTime.UTC(),
		AutoExtend:      params.AutoExtend,
	}
	if err := s.store.CreateAuction(ctx, &a); err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to create auction: %w", err)
	}
	return a, nil
}

// GetAuction returns a listing, bumping its view counter. Reading an ACTIVE
// auction past its deadline performs the same ENDED transition the sweeper
// would: the caller always observes a consistent status.
func (s *Service) GetAuction(ctx context.Context, id string) (model.Auction, error) {
	if id == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}
	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", id, err)
	}
	if a.Status == model.StatusActive && !a.EndTime.After(s.now()) {
		a = s.expire(ctx, a)
	}
	if err := s.store.IncrementViews(ctx, id); err != nil {
		utils.Warn("lifecycle: failed to bump view counter", map[string]any{
			"auction_id": id,
			"error":      err.Error(),
		})
	}
	return a, nil
}

// ListAuctions returns a filtered page of listings.
func (s *Service) ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]model.Auction, int64, error) {
	auctions, total, err := s.store.ListAuctions(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, total, nil
}

// DeleteAuction removes a listing without bids. Once a bid exists the
// listing can only be cancelled, never deleted.
func (s *Service) DeleteAuction(ctx context.Context, id, actorID string) error {
	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return fmt.Errorf("service: failed to get auction %s: %w", id, err)
	}
	if a.SellerID != actorID {
		return fmt.Errorf("service: user %s does not own auction %s: %w", actorID, id, auctionerrors.ErrForbidden)
	}
	if err := s.store.DeleteAuction(ctx, id); err != nil {
		return fmt.Errorf("service: failed to delete auction %s: %w", id, err)
	}
	return nil
}

// StartAuction transitions DRAFT -> ACTIVE for the listing's seller.
func (s *Service) StartAuction(ctx context.Context, id, actorID string) (model.Auction, error) {
	a, err := s.store.TransitionStatus(ctx, id, model.StatusActive, func(a model.Auction) error {
		if a.SellerID != actorID {
			return fmt.Errorf("user %s does not own auction %s: %w", actorID, a.ID, auctionerrors.ErrForbidden)
		}
		if a.Status != model.StatusDraft {
			return &auctionerrors.InvalidStateError{Current: string(a.Status)}
		}
		return nil
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to start auction %s: %w", id, err)
	}
	if s.events != nil {
		s.events.AuctionStarted(a)
	}
	return a, nil
}

// EndAuction transitions ACTIVE -> ENDED on a seller command and notifies
// the winning bidder, if any.
func (s *Service) EndAuction(ctx context.Context, id, actorID string) (model.Auction, error) {
	a, err := s.store.TransitionStatus(ctx, id, model.StatusEnded, func(a model.Auction) error {
		if a.SellerID != actorID {
			return fmt.Errorf("user %s does not own auction %s: %w", actorID, a.ID, auctionerrors.ErrForbidden)
		}
		if a.Status != model.StatusActive {
			return &auctionerrors.InvalidStateError{Current: string(a.Status)}
		}
		return nil
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to end auction %s: %w", id, err)
	}
	s.notifyEnded(ctx, a)
	return a, nil
}

// CancelAuction transitions DRAFT/ACTIVE -> CANCELLED and notifies every
// distinct prior bidder once.
func (s *Service) CancelAuction(ctx context.Context, id, actorID string) (model.Auction, error) {
	a, err := s.store.TransitionStatus(ctx, id, model.StatusCancelled, func(a model.Auction) error {
		if a.SellerID != actorID {
			return fmt.Errorf("user %s does not own auction %s: %w", actorID, a.ID, auctionerrors.ErrForbidden)
		}
		if a.Status != model.StatusDraft && a.Status != model.StatusActive {
			return &auctionerrors.InvalidStateError{Current: string(a.Status)}
		}
		return nil
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to cancel auction %s: %w", id, err)
	}

	bidders, err := s.store.ListDistinctBidders(ctx, id)
	if err != nil {
		utils.Error("lifecycle: failed to list bidders for cancellation notices", map[string]any{
			"auction_id": id,
			"error":      err.Error(),
		})
		bidders = nil
	}
	if s.events != nil {
		s.events.AuctionCancelled(a, bidders)
	}
	return a, nil
}

// ExpireDue ends every ACTIVE auction whose deadline has passed. It is safe
// to call from any number of schedulers: the transition guard makes a lost
// race a no-op rather than an error.
func (s *Service) ExpireDue(ctx context.Context, limit int) int {
	due, err := s.store.ListExpired(ctx, s.now(), limit)
	if err != nil {
		utils.Error("lifecycle: failed to list expired auctions", map[string]any{"error": err.Error()})
		return 0
	}
	ended := 0
	for _, a := range due {
		if res := s.expire(ctx, a); res.Status == model.StatusEnded {
			ended++
		}
	}
	return ended
}

// expire performs the deadline-driven ENDED transition. Only the caller that
// wins the ACTIVE -> ENDED race notifies the winner, so the "won"
// notification goes out exactly once per auction.
func (s *Service) expire(ctx context.Context, a model.Auction) model.Auction {
	ended, err := s.store.TransitionStatus(ctx, a.ID, model.StatusEnded, func(cur model.Auction) error {
		if cur.Status != model.StatusActive {
			return &auctionerrors.InvalidStateError{Current: string(cur.Status)}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, auctionerrors.ErrInvalidState) {
			// Another scheduler or probe got there first.
			if fresh, ferr := s.store.GetAuction(ctx, a.ID); ferr == nil {
				return fresh
			}
			return a
		}
		utils.Error("lifecycle: failed to expire auction", map[string]any{
			"auction_id": a.ID,
			"error":      err.Error(),
		})
		return a
	}
	s.notifyEnded(ctx, ended)
	return ended
}

func (s *Service) notifyEnded(ctx context.Context, a model.Auction) {
	if s.events == nil {
		return
	}
	var winner *model.Bid
	bid, err := s.store.GetWinningBid(ctx, a.ID)
	if err == nil {
		winner = &bid
	} else if !errors.Is(err, auctionerrors.ErrNoBids) {
		utils.Error("lifecycle: failed to look up winning bid", map[string]any{
			"auction_id": a.ID,
			"error":      err.Error(),
		})
	}
	s.events.AuctionEnded(a, winner)
}
