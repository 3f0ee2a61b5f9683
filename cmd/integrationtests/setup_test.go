package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"auction-house/internal/bidding"
	"auction-house/internal/config"
	"auction-house/internal/events"
	"auction-house/internal/lifecycle"
	"auction-house/internal/realtime"
	"auction-house/internal/repository"
	"auction-house/internal/server"
)

// testEnv wires the full engine over the in-memory store, the same way main
// does for a DSN-less deployment.
type testEnv struct {
	router  *gin.Engine
	store   *repository.MemoryStore
	fanout  *events.Fanout
	bidding *bidding.Service
	life    *lifecycle.Service
}

// SetupTestEnv initializes the router with the in-memory store for
// integration testing.
func SetupTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	hub := realtime.NewHub()
	fanout := events.NewFanout(hub, store)
	biddingSvc := bidding.NewService(store, fanout)
	lifecycleSvc := lifecycle.NewService(store, fanout, decimal.NewFromInt(1))

	router := server.SetupRouter(server.Deps{
		Lifecycle:     lifecycleSvc,
		Bidding:       biddingSvc,
		Notifications: store,
		Hub:           hub,
		Realtime: config.RealtimeConfig{
			WriteTimeout:   5 * time.Second,
			PongTimeout:    30 * time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     32,
		},
	})

	return &testEnv{
		router:  router,
		store:   store,
		fanout:  fanout,
		bidding: biddingSvc,
		life:    lifecycleSvc,
	}
}

// ExecuteRequest executes an HTTP request as the given user and returns the
// response recorder.
func (e *testEnv) ExecuteRequest(t *testing.T, method, url, userID string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request and parses the JSON
// envelope.
func (e *testEnv) ExecuteRequestAndParse(t *testing.T, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := e.ExecuteRequest(t, method, url, userID, reqBody)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// CreateActiveAuction creates and starts a listing through the API, returning
// its id.
func (e *testEnv) CreateActiveAuction(t *testing.T, sellerID string, startingPrice, increment int64) string {
	t.Helper()

	resp, w := e.ExecuteRequestAndParse(t, "POST", "/auctions", sellerID, map[string]any{
		"title":             "integration lot",
		"starting_price":    decimal.NewFromInt(startingPrice),
		"min_bid_increment": decimal.NewFromInt(increment),
		"end_time":          time.Now().UTC().Add(1 * time.Hour).Format(time.RFC3339),
	})
	if w.Code != 201 {
		t.Fatalf("create auction failed: status %d body %s", w.Code, w.Body.String())
	}
	auctionID := resp["data"].(map[string]any)["id"].(string)

	_, w = e.ExecuteRequestAndParse(t, "POST", "/auctions/"+auctionID+"/start", sellerID, nil)
	if w.Code != 200 {
		t.Fatalf("start auction failed: status %d body %s", w.Code, w.Body.String())
	}
	return auctionID
}
