package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/config"
	"auction-house/internal/events"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
)

type fakeBidPlacer struct {
	err error
}

func (f *fakeBidPlacer) PlaceBid(_ context.Context, auctionID, bidderID string, amount decimal.Decimal) (repository.CommitBidResult, error) {
	if f.err != nil {
		return repository.CommitBidResult{}, f.err
	}
	return repository.CommitBidResult{
		Bid: model.Bid{
			ID:        "bid1",
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			IsWinning: true,
		},
	}, nil
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		WriteTimeout:   5 * time.Second,
		PongTimeout:    30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     32,
	}
}

func dialTestServer(t *testing.T, hub *Hub, bids BidPlacer) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", ServeWS(hub, bids, testRealtimeConfig()))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=user1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestServeWS_JoinAndBroadcast(t *testing.T) {
	hub := NewHub()
	conn := dialTestServer(t, hub, &fakeBidPlacer{})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_auction", "auction_id": "auction1"}))
	joined := readFrame(t, conn)
	require.Equal(t, "joined_auction", joined["type"])
	require.Equal(t, "auction1", joined["auction_id"])

	require.Eventually(t, func() bool {
		return hub.Subscribers("auction1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish("auction1", events.Event{Type: events.EventNewBid, AuctionID: "auction1"})
	broadcast := readFrame(t, conn)
	require.Equal(t, events.EventNewBid, broadcast["type"])
	require.Equal(t, "auction1", broadcast["auction_id"])
}

func TestServeWS_PlaceBid(t *testing.T) {
	hub := NewHub()
	conn := dialTestServer(t, hub, &fakeBidPlacer{})

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":       "place_bid",
		"auction_id": "auction1",
		"amount":     "1100",
	}))

	reply := readFrame(t, conn)
	require.Equal(t, "bid_success", reply["type"])
	bid := reply["bid"].(map[string]any)
	require.Equal(t, "auction1", bid["auction_id"])
	require.Equal(t, "user1", bid["bidder_id"])
}

func TestServeWS_BidRejection(t *testing.T) {
	hub := NewHub()
	conn := dialTestServer(t, hub, &fakeBidPlacer{err: &auctionerrors.BidTooLowError{Minimum: decimal.NewFromInt(1200)}})

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":       "place_bid",
		"auction_id": "auction1",
		"amount":     "1100",
	}))

	reply := readFrame(t, conn)
	require.Equal(t, "bid_error", reply["type"])
	require.Contains(t, reply["message"], "1200.00")
}

func TestServeWS_MalformedAndUnknownFrames(t *testing.T) {
	hub := NewHub()
	conn := dialTestServer(t, hub, &fakeBidPlacer{})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	reply := readFrame(t, conn)
	require.Equal(t, "error", reply["type"])
	require.Equal(t, "malformed frame", reply["message"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "mystery"}))
	reply = readFrame(t, conn)
	require.Equal(t, "error", reply["type"])
	require.Contains(t, reply["message"], "mystery")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_auction"}))
	reply = readFrame(t, conn)
	require.Equal(t, "error", reply["type"])
	require.Equal(t, "missing auction_id", reply["message"])
}

func TestServeWS_RejectsAnonymousConnection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", ServeWS(NewHub(), &fakeBidPlacer{}, testRealtimeConfig()))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}

func TestServeWS_LeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	conn := dialTestServer(t, hub, &fakeBidPlacer{})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_auction", "auction_id": "auction1"}))
	require.Equal(t, "joined_auction", readFrame(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "leave_auction", "auction_id": "auction1"}))
	require.Equal(t, "left_auction", readFrame(t, conn)["type"])

	require.Eventually(t, func() bool {
		return hub.Subscribers("auction1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
