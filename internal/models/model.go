package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AuctionStatus is the lifecycle state of an auction listing.
type AuctionStatus string

const (
	StatusDraft     AuctionStatus = "DRAFT"
	StatusActive    AuctionStatus = "ACTIVE"
	StatusEnded     AuctionStatus = "ENDED"
	StatusCancelled AuctionStatus = "CANCELLED"
)

// Notification types emitted by the event fan-out.
const (
	NotificationBidPlaced        = "BID_PLACED"
	NotificationBidOutbid        = "BID_OUTBID"
	NotificationAuctionWon       = "AUCTION_WON"
	NotificationAuctionCancelled = "AUCTION_CANCELLED"
)

// User represents a participant in the auction marketplace. Identity is
// issued upstream; the engine only references users by id.
type User struct {
	ID       string `gorm:"primaryKey;type:text" json:"id"`
	Username string `gorm:"type:text;not null" json:"username"`
	Role     string `gorm:"type:text;not null;default:BIDDER" json:"role"`
}

// Auction represents a single-item, time-boxed listing.
type Auction struct {
	ID              string           `gorm:"primaryKey;type:text" json:"id"`
	SellerID        string           `gorm:"type:text;index;not null" json:"seller_id"`
	CategoryID      string           `gorm:"type:text;index" json:"category_id"`
	Title           string           `gorm:"type:text;not null" json:"title"`
	Description     string           `gorm:"type:text" json:"description"`
	StartingPrice   decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"starting_price"`
	CurrentPrice    decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"current_price"`
	ReservePrice    *decimal.Decimal `gorm:"type:numeric(14,2)" json:"reserve_price,omitempty"`
	MinBidIncrement decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"min_bid_increment"`
	TotalBids       int              `gorm:"not null;default:0" json:"total_bids"`
	Status          AuctionStatus    `gorm:"type:text;index;not null" json:"status"`
	StartTime       *time.Time       `gorm:"type:timestamptz" json:"start_time,omitempty"`
	EndTime         time.Time        `gorm:"type:timestamptz;index;not null" json:"end_time"`
	AutoExtend      bool             `gorm:"not null;default:false" json:"auto_extend"`
	Views           int              `gorm:"not null;default:0" json:"views"`
	CreatedAt       time.Time        `gorm:"type:timestamptz" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"type:timestamptz" json:"updated_at"`
}

func (Auction) TableName() string {
	return "auctions"
}

// Bid represents one accepted bid. Rows are append-only; only the IsWinning
// flag is ever mutated after insert.
type Bid struct {
	ID        string          `gorm:"primaryKey;type:text" json:"bid_id"`
	AuctionID string          `gorm:"type:text;index;not null" json:"auction_id"`
	BidderID  string          `gorm:"type:text;index;not null" json:"bidder_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	IsWinning bool            `gorm:"not null;default:false;index" json:"is_winning"`
	CreatedAt time.Time       `gorm:"type:timestamptz;not null" json:"created_at"`
}

func (Bid) TableName() string {
	return "bids"
}

// Notification is a durable record queued for a user by the event fan-out.
type Notification struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	UserID    string         `gorm:"type:text;index;not null" json:"user_id"`
	AuctionID string         `gorm:"type:text;index" json:"auction_id"`
	Type      string         `gorm:"type:text;not null" json:"type"`
	Title     string         `gorm:"type:text;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Data      datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"`
	Read      bool           `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time      `gorm:"type:timestamptz" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
