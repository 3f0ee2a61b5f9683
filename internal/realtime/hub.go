package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"auction-house/internal/events"
	"auction-house/utils"
)

// Hub tracks live websocket subscribers by auction channel and fans
// committed events out to them. Publish never blocks: each client has a
// buffered send queue and a slow client just misses the frame - it re-fetches
// state on reconnect, which is the delivery contract for this channel.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	droppedFanout uint64
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

// Publish marshals the event once and queues it for every subscriber of the
// auction's channel.
func (h *Hub) Publish(auctionID string, event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		utils.Error("realtime: failed to marshal event", map[string]any{
			"auction_id": auctionID,
			"type":       event.Type,
			"error":      err.Error(),
		})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[auctionID] {
		select {
		case c.send <- payload:
		default:
			// Drop when the subscriber is slow; the hub must not block.
			atomic.AddUint64(&h.droppedFanout, 1)
		}
	}
}

// Subscribers returns the number of live subscribers of one auction channel.
func (h *Hub) Subscribers(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}

// Dropped returns the number of frames dropped on slow subscribers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.droppedFanout)
}

func (h *Hub) join(c *Client, auctionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[auctionID] = room
	}
	room[c] = true
}

func (h *Hub) leave(c *Client, auctionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, auctionID)
}

// drop removes a disconnected client from every room it joined.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for auctionID := range h.rooms {
		h.removeLocked(c, auctionID)
	}
}

func (h *Hub) removeLocked(c *Client, auctionID string) {
	room, ok := h.rooms[auctionID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, auctionID)
	}
}
