package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func placeBid(t *testing.T, e *testEnv, userID, auctionID string, amount int64) (map[string]any, int) {
	t.Helper()
	resp, w := e.ExecuteRequestAndParse(t, "POST", "/bids", userID, map[string]any{
		"auction_id": auctionID,
		"amount":     decimal.NewFromInt(amount),
	})
	return resp, w.Code
}

func notificationTypes(t *testing.T, e *testEnv, userID string) map[string]int {
	t.Helper()
	resp, w := e.ExecuteRequestAndParse(t, "GET", "/users/"+userID+"/notifications", userID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := make(map[string]int)
	for _, raw := range resp["data"].([]any) {
		n := raw.(map[string]any)
		counts[n["type"].(string)]++
	}
	return counts
}

// The full path from listing to settled bids: drafts reject bids, the minimum
// is starting price plus increment, and each accepted bid flips the winner.
func TestBiddingFlow(t *testing.T) {
	e := SetupTestEnv()

	// Create a draft listing.
	resp, w := e.ExecuteRequestAndParse(t, "POST", "/auctions", "seller1", map[string]any{
		"title":             "vintage synthesizer",
		"starting_price":    decimal.NewFromInt(1000),
		"min_bid_increment": decimal.NewFromInt(100),
		"end_time":          time.Now().UTC().Add(1 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	auction := resp["data"].(map[string]any)
	auctionID := auction["id"].(string)
	require.Equal(t, "DRAFT", auction["status"])

	// Bidding on a draft is rejected.
	_, code := placeBid(t, e, "user1", auctionID, 1100)
	require.Equal(t, http.StatusBadRequest, code)

	// Start the auction.
	_, w = e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/start", "seller1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 1050 is below starting price + increment; the rejection names the
	// exact minimum.
	resp, code = placeBid(t, e, "user1", auctionID, 1050)
	require.Equal(t, http.StatusConflict, code)
	require.Contains(t, resp["error"], "minimum bid is 1100.00")

	// 1100 clears the bar.
	resp, code = placeBid(t, e, "user1", auctionID, 1100)
	require.Equal(t, http.StatusCreated, code)
	bid := resp["data"].(map[string]any)["bid"].(map[string]any)
	require.Equal(t, true, bid["is_winning"])

	// Repeating 1100 now fails: the price moved.
	resp, code = placeBid(t, e, "user2", auctionID, 1100)
	require.Equal(t, http.StatusConflict, code)
	require.Contains(t, resp["error"], "minimum bid is 1200.00")

	// 1200 flips the winner to user2.
	_, code = placeBid(t, e, "user2", auctionID, 1200)
	require.Equal(t, http.StatusCreated, code)

	resp, w = e.ExecuteRequestAndParse(t, "GET", "/auctions/"+auctionID+"/winning", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	winning := resp["data"].(map[string]any)
	require.Equal(t, "user2", winning["bidder_id"])

	// The listing aggregates advanced with each commit.
	resp, w = e.ExecuteRequestAndParse(t, "GET", "/auctions/"+auctionID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	auction = resp["data"].(map[string]any)
	require.Equal(t, float64(2), auction["total_bids"])

	resp, w = e.ExecuteRequestAndParse(t, "GET", "/auctions/"+auctionID+"/bids", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bids := resp["data"].(map[string]any)["bids"].([]any)
	require.Len(t, bids, 2)

	// Fan-out settles: seller sees two bid notices, user1 was outbid once.
	e.fanout.Wait()
	require.Equal(t, 2, notificationTypes(t, e, "seller1")["BID_PLACED"])
	require.Equal(t, 1, notificationTypes(t, e, "user1")["BID_OUTBID"])
	require.Zero(t, notificationTypes(t, e, "user2")["BID_OUTBID"])
}

func TestSelfBidRejected(t *testing.T) {
	e := SetupTestEnv()
	auctionID := e.CreateActiveAuction(t, "seller1", 1000, 100)

	resp, code := placeBid(t, e, "seller1", auctionID, 1100)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, resp["message"], "you cannot bid on your own auction")
}

func TestAnonymousBidRejected(t *testing.T) {
	e := SetupTestEnv()
	auctionID := e.CreateActiveAuction(t, "seller1", 1000, 100)

	_, w := e.ExecuteRequestAndParse(t, "POST", "/bids", "", map[string]any{
		"auction_id": auctionID,
		"amount":     decimal.NewFromInt(1100),
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManualEndNotifiesWinner(t *testing.T) {
	e := SetupTestEnv()
	auctionID := e.CreateActiveAuction(t, "seller1", 1000, 100)

	_, code := placeBid(t, e, "user1", auctionID, 1100)
	require.Equal(t, http.StatusCreated, code)

	// Only the seller may end early.
	_, w := e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/end", "intruder", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	resp, w := e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/end", "seller1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ENDED", resp["data"].(map[string]any)["status"])

	// Ending twice is a state conflict.
	_, w = e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/end", "seller1", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// No bids land after the close.
	_, code = placeBid(t, e, "user2", auctionID, 1200)
	require.Equal(t, http.StatusBadRequest, code)

	e.fanout.Wait()
	require.Equal(t, 1, notificationTypes(t, e, "user1")["AUCTION_WON"])
}

func TestCancelNotifiesDistinctBidders(t *testing.T) {
	e := SetupTestEnv()
	auctionID := e.CreateActiveAuction(t, "seller1", 1000, 100)

	// user1 bids twice; still only one cancellation notice later.
	for i, bidder := range []string{"user1", "user2", "user1", "user3"} {
		_, code := placeBid(t, e, bidder, auctionID, int64(1100+i*100))
		require.Equal(t, http.StatusCreated, code, "bid %d by %s", i, bidder)
	}

	resp, w := e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/cancel", "seller1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "CANCELLED", resp["data"].(map[string]any)["status"])

	e.fanout.Wait()
	for _, bidder := range []string{"user1", "user2", "user3"} {
		require.Equal(t, 1, notificationTypes(t, e, bidder)["AUCTION_CANCELLED"], "bidder %s", bidder)
	}
}

func TestDeleteGuards(t *testing.T) {
	e := SetupTestEnv()

	// A listing with bids cannot be deleted.
	withBids := e.CreateActiveAuction(t, "seller1", 1000, 100)
	_, code := placeBid(t, e, "user1", withBids, 1100)
	require.Equal(t, http.StatusCreated, code)

	_, w := e.ExecuteRequestAndParse(t, "DELETE", "/auctions/"+withBids, "seller1", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// A bidless listing deletes fine, but only for its owner.
	bidless := e.CreateActiveAuction(t, "seller1", 500, 50)
	_, w = e.ExecuteRequestAndParse(t, "DELETE", "/auctions/"+bidless, "intruder", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	_, w = e.ExecuteRequestAndParse(t, "DELETE", "/auctions/"+bidless, "seller1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, w = e.ExecuteRequestAndParse(t, "GET", "/auctions/"+bidless, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

// A deadline that passes settles the auction whether the sweeper or a plain
// read gets there first.
func TestDeadlineExpiry(t *testing.T) {
	e := SetupTestEnv()

	resp, w := e.ExecuteRequestAndParse(t, "POST", "/auctions", "seller1", map[string]any{
		"title":          "short fuse lot",
		"starting_price": decimal.NewFromInt(1000),
		"end_time":       time.Now().UTC().Add(150 * time.Millisecond).Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	auctionID := resp["data"].(map[string]any)["id"].(string)

	_, w = e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/start", "seller1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, code := placeBid(t, e, "user1", auctionID, 1100)
	require.Equal(t, http.StatusCreated, code)

	time.Sleep(200 * time.Millisecond)

	// Bids after the deadline bounce even before any sweep runs.
	_, code = placeBid(t, e, "user2", auctionID, 1200)
	require.Equal(t, http.StatusBadRequest, code)

	ended := e.life.ExpireDue(context.Background(), 10)
	require.Equal(t, 1, ended)

	// A second sweep finds nothing to do.
	require.Zero(t, e.life.ExpireDue(context.Background(), 10))

	resp, w = e.ExecuteRequestAndParse(t, "GET", "/auctions/"+auctionID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ENDED", resp["data"].(map[string]any)["status"])

	e.fanout.Wait()
	require.Equal(t, 1, notificationTypes(t, e, "user1")["AUCTION_WON"])
}

func TestListAuctionsDefaultsToActive(t *testing.T) {
	e := SetupTestEnv()

	activeID := e.CreateActiveAuction(t, "seller1", 1000, 100)

	// A draft listing stays out of the default view.
	_, w := e.ExecuteRequestAndParse(t, "POST", "/auctions", "seller1", map[string]any{
		"title":          "unpublished lot",
		"starting_price": decimal.NewFromInt(500),
		"end_time":       time.Now().UTC().Add(1 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp, w := e.ExecuteRequestAndParse(t, "GET", "/auctions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	auctions := resp["data"].(map[string]any)["auctions"].([]any)
	require.Len(t, auctions, 1)
	require.Equal(t, activeID, auctions[0].(map[string]any)["id"])

	resp, w = e.ExecuteRequestAndParse(t, "GET", "/auctions?status=DRAFT", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].(map[string]any)["auctions"].([]any), 1)
}

func TestUserBidHistory(t *testing.T) {
	e := SetupTestEnv()

	first := e.CreateActiveAuction(t, "seller1", 1000, 100)
	second := e.CreateActiveAuction(t, "seller2", 500, 50)

	_, code := placeBid(t, e, "user1", first, 1100)
	require.Equal(t, http.StatusCreated, code)
	_, code = placeBid(t, e, "user1", second, 550)
	require.Equal(t, http.StatusCreated, code)

	resp, w := e.ExecuteRequestAndParse(t, "GET", "/users/user1/bids", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bids := resp["data"].(map[string]any)["bids"].([]any)
	require.Len(t, bids, 2)
	for _, raw := range bids {
		require.Equal(t, "user1", raw.(map[string]any)["bidder_id"])
	}
}

func TestHealthz(t *testing.T) {
	e := SetupTestEnv()
	_, w := e.ExecuteRequestAndParse(t, "GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

// Hammering one auction through the full HTTP stack still yields a single
// winner and a strictly advanced price.
func TestConcurrentBidsOverHTTP(t *testing.T) {
	e := SetupTestEnv()
	auctionID := e.CreateActiveAuction(t, "seller1", 1000, 100)

	const bidders = 20
	done := make(chan int, bidders)
	for i := 0; i < bidders; i++ {
		go func(i int) {
			_, code := placeBid(t, e, fmt.Sprintf("user%d", i), auctionID, int64(1100+i*100))
			done <- code
		}(i)
	}

	accepted := 0
	for i := 0; i < bidders; i++ {
		if <-done == http.StatusCreated {
			accepted++
		}
	}
	require.NotZero(t, accepted)

	resp, w := e.ExecuteRequestAndParse(t, "GET", "/auctions/"+auctionID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	auction := resp["data"].(map[string]any)
	require.Equal(t, float64(accepted), auction["total_bids"])

	resp, w = e.ExecuteRequestAndParse(t, "GET", "/auctions/"+auctionID+"/winning", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	e.fanout.Wait()
}
