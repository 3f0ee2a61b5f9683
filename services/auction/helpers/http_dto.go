package helpers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	Title           string           `json:"title" binding:"required"`
	Description     string           `json:"description"`
	CategoryID      string           `json:"category_id"`
	StartingPrice   decimal.Decimal  `json:"starting_price" binding:"required"`
	ReservePrice    *decimal.Decimal `json:"reserve_price"`
	MinBidIncrement decimal.Decimal  `json:"min_bid_increment"`
	EndTime         time.Time        `json:"end_time" binding:"required"`
	AutoExtend      bool             `json:"auto_extend"`
}

type PlaceBidRequest struct {
	AuctionID string          `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	IsWinning bool            `json:"is_winning"`
	CreatedAt string          `json:"created_at"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
