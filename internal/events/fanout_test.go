package events

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	model "auction-house/internal/models"
	"auction-house/internal/repository"
)

type fakePublisher struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(map[string][]Event)}
}

func (p *fakePublisher) Publish(auctionID string, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[auctionID] = append(p.events[auctionID], event)
}

func (p *fakePublisher) published(auctionID string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events[auctionID]...)
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func (n *fakeNotifier) CreateNotification(_ context.Context, notification *model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, *notification)
	return nil
}

func (n *fakeNotifier) byType(notificationType string) []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Notification
	for _, item := range n.notifications {
		if item.Type == notificationType {
			out = append(out, item)
		}
	}
	return out
}

func testAuction() model.Auction {
	return model.Auction{
		ID:       "auction1",
		SellerID: "seller1",
		Title:    "vintage synthesizer",
		Status:   model.StatusActive,
	}
}

func TestFanout_BidPlaced(t *testing.T) {
	pub := newFakePublisher()
	notifier := &fakeNotifier{}
	fanout := NewFanout(pub, notifier)

	a := testAuction()
	bid := model.Bid{ID: "bid1", AuctionID: a.ID, BidderID: "user2", Amount: decimal.NewFromInt(1200), IsWinning: true}

	fanout.BidPlaced(repository.CommitBidResult{Bid: bid, Auction: a, OutbidUserID: "user1"})
	fanout.Wait()

	events := pub.published(a.ID)
	require.Len(t, events, 1)
	require.Equal(t, EventNewBid, events[0].Type)
	require.Equal(t, "bid1", events[0].Bid.ID)

	sellerNotes := notifier.byType(model.NotificationBidPlaced)
	require.Len(t, sellerNotes, 1)
	require.Equal(t, "seller1", sellerNotes[0].UserID)
	require.Equal(t, "New Bid Placed", sellerNotes[0].Title)

	outbidNotes := notifier.byType(model.NotificationBidOutbid)
	require.Len(t, outbidNotes, 1)
	require.Equal(t, "user1", outbidNotes[0].UserID)
	require.Contains(t, outbidNotes[0].Message, a.Title)
}

func TestFanout_BidPlaced_NoOutbidForFirstBid(t *testing.T) {
	pub := newFakePublisher()
	notifier := &fakeNotifier{}
	fanout := NewFanout(pub, notifier)

	fanout.BidPlaced(repository.CommitBidResult{
		Bid:     model.Bid{ID: "bid1", AuctionID: "auction1", BidderID: "user1", Amount: decimal.NewFromInt(1100)},
		Auction: testAuction(),
	})
	fanout.Wait()

	require.Empty(t, notifier.byType(model.NotificationBidOutbid))
	require.Len(t, notifier.byType(model.NotificationBidPlaced), 1)
}

func TestFanout_AuctionEnded(t *testing.T) {
	pub := newFakePublisher()
	notifier := &fakeNotifier{}
	fanout := NewFanout(pub, notifier)

	a := testAuction()
	a.Status = model.StatusEnded

	t.Run("with_winner", func(t *testing.T) {
		winner := model.Bid{ID: "bid1", AuctionID: a.ID, BidderID: "user1", Amount: decimal.NewFromInt(1500), IsWinning: true}
		fanout.AuctionEnded(a, &winner)
		fanout.Wait()

		events := pub.published(a.ID)
		require.Len(t, events, 1)
		require.Equal(t, EventAuctionEnded, events[0].Type)

		won := notifier.byType(model.NotificationAuctionWon)
		require.Len(t, won, 1)
		require.Equal(t, "user1", won[0].UserID)
		require.Equal(t, "Auction Won!", won[0].Title)
	})

	t.Run("without_winner", func(t *testing.T) {
		fanout.AuctionEnded(a, nil)
		fanout.Wait()

		require.Len(t, pub.published(a.ID), 2)
		require.Len(t, notifier.byType(model.NotificationAuctionWon), 1, "no extra won notification without a winner")
	})
}

// Every distinct prior bidder gets exactly one cancellation notice.
func TestFanout_AuctionCancelled(t *testing.T) {
	pub := newFakePublisher()
	notifier := &fakeNotifier{}
	fanout := NewFanout(pub, notifier)

	a := testAuction()
	a.Status = model.StatusCancelled

	fanout.AuctionCancelled(a, []string{"user1", "user2", "user3"})
	fanout.Wait()

	events := pub.published(a.ID)
	require.Len(t, events, 1)
	require.Equal(t, EventAuctionCancelled, events[0].Type)

	notes := notifier.byType(model.NotificationAuctionCancelled)
	require.Len(t, notes, 3)
	recipients := make(map[string]int)
	for _, n := range notes {
		recipients[n.UserID]++
		require.Equal(t, "Auction Cancelled", n.Title)
	}
	require.Equal(t, map[string]int{"user1": 1, "user2": 1, "user3": 1}, recipients)
}

func TestFanout_AuctionStarted(t *testing.T) {
	pub := newFakePublisher()
	fanout := NewFanout(pub, nil)

	a := testAuction()
	fanout.AuctionStarted(a)
	fanout.Wait()

	events := pub.published(a.ID)
	require.Len(t, events, 1)
	require.Equal(t, EventAuctionStarted, events[0].Type)
	require.Equal(t, a.ID, events[0].Auction.ID)
}

// Nil collaborators are tolerated so a transport-less deployment still works.
func TestFanout_NilCollaborators(t *testing.T) {
	fanout := NewFanout(nil, nil)
	fanout.BidPlaced(repository.CommitBidResult{Bid: model.Bid{ID: "bid1"}, Auction: testAuction()})
	fanout.AuctionStarted(testAuction())
	fanout.Wait()
}
