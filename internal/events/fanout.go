package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// Event is the payload published to live subscribers of an auction channel.
const (
	EventNewBid           = "new_bid"
	EventAuctionStarted   = "auction_started"
	EventAuctionEnded     = "auction_ended"
	EventAuctionCancelled = "auction_cancelled"
)

type Event struct {
	Type      string         `json:"type"`
	AuctionID string         `json:"auction_id"`
	Auction   *model.Auction `json:"auction,omitempty"`
	Bid       *model.Bid     `json:"bid,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Publisher delivers an event to the live subscribers of one auction
// channel. Delivery is at-least-once for connected subscribers only.
type Publisher interface {
	Publish(auctionID string, event Event)
}

// Notifier is the durable notification sink.
type Notifier interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Fanout broadcasts committed outcomes to live subscribers and enqueues
// notification records. Every public method returns immediately; the work
// runs on its own goroutine because the triggering transaction is already
// durable, so a fan-out failure is logged and never surfaced to the caller.
type Fanout struct {
	pub      Publisher
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewFanout creates a new Fanout instance
func NewFanout(pub Publisher, notifier Notifier) *Fanout {
	return &Fanout{
		pub:      pub,
		notifier: notifier,
		timeout:  5 * time.Second,
	}
}

// Wait blocks until all in-flight fan-out work finishes. Used by shutdown
// and by tests.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// BidPlaced publishes the new bid to the auction channel, notifies the
// seller, and notifies the previous highest bidder when they were outbid by
// someone else.
func (f *Fanout) BidPlaced(res repository.CommitBidResult) {
	f.async(func(ctx context.Context) {
		a := res.Auction
		bid := res.Bid
		f.publish(a.ID, Event{
			Type:      EventNewBid,
			AuctionID: a.ID,
			Auction:   &a,
			Bid:       &bid,
		})
		f.enqueue(ctx, model.Notification{
			UserID:    a.SellerID,
			AuctionID: a.ID,
			Type:      model.NotificationBidPlaced,
			Title:     "New Bid Placed",
			Message:   fmt.Sprintf("A bid of %s was placed on your auction %q", bid.Amount.StringFixed(2), a.Title),
			Data: mustJSON(map[string]any{
				"bid_amount": bid.Amount,
				"bidder_id":  bid.BidderID,
			}),
		})
		if res.OutbidUserID != "" {
			f.enqueue(ctx, model.Notification{
				UserID:    res.OutbidUserID,
				AuctionID: a.ID,
				Type:      model.NotificationBidOutbid,
				Title:     "You've Been Outbid",
				Message:   fmt.Sprintf("Your bid on %q has been outbid", a.Title),
				Data: mustJSON(map[string]any{
					"new_bid_amount": bid.Amount,
					"auction_title":  a.Title,
				}),
			})
		}
	})
}

// AuctionStarted publishes the ACTIVE transition to the auction channel.
func (f *Fanout) AuctionStarted(a model.Auction) {
	f.async(func(ctx context.Context) {
		f.publish(a.ID, Event{
			Type:      EventAuctionStarted,
			AuctionID: a.ID,
			Auction:   &a,
		})
	})
}

// AuctionEnded publishes the ENDED transition and queues a "won"
// notification for the winning bidder, if there is one.
func (f *Fanout) AuctionEnded(a model.Auction, winner *model.Bid) {
	f.async(func(ctx context.Context) {
		f.publish(a.ID, Event{
			Type:      EventAuctionEnded,
			AuctionID: a.ID,
			Auction:   &a,
			Bid:       winner,
			Message:   "Auction has ended",
		})
		if winner == nil {
			return
		}
		f.enqueue(ctx, model.Notification{
			UserID:    winner.BidderID,
			AuctionID: a.ID,
			Type:      model.NotificationAuctionWon,
			Title:     "Auction Won!",
			Message:   fmt.Sprintf("Congratulations! You won the auction %q", a.Title),
			Data: mustJSON(map[string]any{
				"auction_title":  a.Title,
				"winning_amount": winner.Amount,
			}),
		})
	})
}

// AuctionCancelled publishes the CANCELLED transition and queues one
// cancellation notification per distinct prior bidder.
func (f *Fanout) AuctionCancelled(a model.Auction, bidders []string) {
	f.async(func(ctx context.Context) {
		f.publish(a.ID, Event{
			Type:      EventAuctionCancelled,
			AuctionID: a.ID,
			Auction:   &a,
			Message:   "Auction has been cancelled",
		})
		for _, bidder := range bidders {
			f.enqueue(ctx, model.Notification{
				UserID:    bidder,
				AuctionID: a.ID,
				Type:      model.NotificationAuctionCancelled,
				Title:     "Auction Cancelled",
				Message:   fmt.Sprintf("The auction %q has been cancelled", a.Title),
				Data: mustJSON(map[string]any{
					"auction_title": a.Title,
					"seller_id":     a.SellerID,
				}),
			})
		}
	})
}

func (f *Fanout) async(work func(ctx context.Context)) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				utils.Error("fanout: recovered from panic", map[string]any{"panic": fmt.Sprint(r)})
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		work(ctx)
	}()
}

func (f *Fanout) publish(auctionID string, event Event) {
	if f.pub == nil {
		return
	}
	f.pub.Publish(auctionID, event)
}

func (f *Fanout) enqueue(ctx context.Context, n model.Notification) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.CreateNotification(ctx, &n); err != nil {
		utils.Error("fanout: failed to enqueue notification", map[string]any{
			"user_id":    n.UserID,
			"auction_id": n.AuctionID,
			"type":       n.Type,
			"error":      err.Error(),
		})
	}
}

func mustJSON(payload map[string]any) datatypes.JSON {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
