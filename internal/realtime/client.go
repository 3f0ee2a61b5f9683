package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"auction-house/internal/config"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// BidPlacer is the slice of the bidding engine the websocket adapter needs.
// The adapter only maps frames to engine calls; all bidding semantics live
// in the engine shared with the HTTP transport.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (repository.CommitBidResult, error)
}

// inbound frame shapes
type clientFrame struct {
	Type      string          `json:"type"`
	AuctionID string          `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
}

const (
	frameJoinAuction  = "join_auction"
	frameLeaveAuction = "leave_auction"
	framePlaceBid     = "place_bid"
)

// Client is one websocket connection. The read pump handles inbound frames;
// the write pump drains the send queue filled by the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	bids   BidPlacer
	cfg    config.RealtimeConfig
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the upstream gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the connection's pumps. The user id
// comes from the gateway-injected identity, same as the HTTP transport.
func ServeWS(hub *Hub, bids BidPlacer, cfg config.RealtimeConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.Query("user_id")
		}
		if userID == "" {
			utils.JSONError(c, http.StatusUnauthorized, errors.New("missing user identity"), "missing user identity")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			utils.Warn("realtime: websocket upgrade failed", map[string]any{"error": err.Error()})
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, cfg.SendBuffer),
			userID: userID,
			bids:   bids,
			cfg:    cfg,
		}
		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("realtime: unexpected close", map[string]any{
					"user_id": c.userID,
					"error":   err.Error(),
				})
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reply("error", map[string]any{"message": "malformed frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame clientFrame) {
	switch frame.Type {
	case frameJoinAuction:
		if frame.AuctionID == "" {
			c.reply("error", map[string]any{"message": "missing auction_id"})
			return
		}
		c.hub.join(c, frame.AuctionID)
		c.reply("joined_auction", map[string]any{"auction_id": frame.AuctionID})

	case frameLeaveAuction:
		c.hub.leave(c, frame.AuctionID)
		c.reply("left_auction", map[string]any{"auction_id": frame.AuctionID})

	case framePlaceBid:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err := c.bids.PlaceBid(ctx, frame.AuctionID, c.userID, frame.Amount)
		if err != nil {
			c.reply("bid_error", map[string]any{
				"auction_id": frame.AuctionID,
				"message":    err.Error(),
			})
			utils.Info("realtime: bid rejected", map[string]any{
				"auction_id": frame.AuctionID,
				"user_id":    c.userID,
				"error":      err.Error(),
			})
			return
		}
		// Room subscribers get the new_bid broadcast via fan-out; this is
		// the direct acknowledgment to the bidder.
		c.reply("bid_success", map[string]any{
			"auction_id": frame.AuctionID,
			"bid":        res.Bid,
		})

	default:
		c.reply("error", map[string]any{"message": fmt.Sprintf("unknown frame type %q", frame.Type)})
	}
}

func (c *Client) reply(frameType string, payload map[string]any) {
	payload["type"] = frameType
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *Client) writePump() {
	pingPeriod := c.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
