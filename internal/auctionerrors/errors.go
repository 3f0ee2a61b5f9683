package auctionerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrNoBids           = errors.New("no bids found for auction")
	ErrUserNoBids       = errors.New("user has not placed any bids")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// business logic errors
var (
	ErrInvalidBid       = errors.New("invalid bid")
	ErrBidTooLow        = errors.New("bid amount too low")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionExpired   = errors.New("auction has ended")
	ErrSelfBidForbidden = errors.New("sellers cannot bid on their own auction")
	ErrConflict         = errors.New("bid lost a concurrent update, retry with the refreshed price")
)

// lifecycle errors
var (
	ErrInvalidAuction = errors.New("invalid auction details")
	ErrForbidden      = errors.New("actor is not allowed to perform this action")
	ErrInvalidState   = errors.New("auction is in the wrong state for this action")
	ErrAuctionHasBids = errors.New("auction with bids cannot be deleted")
)

// BidTooLowError reports the computed minimum acceptable amount so a
// rejected bidder knows the exact price to beat.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount too low - minimum bid is %s", e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// InvalidStateError reports the status that blocked a lifecycle action.
type InvalidStateError struct {
	Current string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("auction is in the wrong state for this action - current status is %s", e.Current)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
