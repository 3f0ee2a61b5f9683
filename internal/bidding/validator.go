package bidding

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
)

// ValidateBid checks a candidate bid against an auction snapshot. It is a
// pure function with no side effects: the engine runs it once against the
// caller's snapshot and again against the row read inside the commit's
// atomic scope, so a bid that lost a race to a higher concurrent bid is
// rejected with the same taxonomy either way.
//
// Checks run in a fixed order: status, self-bid, deadline, amount.
func ValidateBid(a model.Auction, bidderID string, amount decimal.Decimal, now time.Time) error {
	if a.Status != model.StatusActive {
		return fmt.Errorf("auction %s is %s: %w", a.ID, a.Status, auctionerrors.ErrAuctionNotActive)
	}
	if a.SellerID == bidderID {
		return fmt.Errorf("auction %s: %w", a.ID, auctionerrors.ErrSelfBidForbidden)
	}
	if !a.EndTime.After(now) {
		return fmt.Errorf("auction %s closed at %s: %w", a.ID, a.EndTime.UTC().Format(time.RFC3339), auctionerrors.ErrAuctionExpired)
	}
	min := a.CurrentPrice.Add(a.MinBidIncrement)
	if amount.LessThan(min) {
		return &auctionerrors.BidTooLowError{Minimum: min}
	}
	return nil
}
