package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/utils"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrForbidden):
		return http.StatusForbidden, "action not permitted for this user"
	case errors.Is(err, auctionerrors.ErrInvalidState):
		return http.StatusConflict, "auction is in the wrong state for this action"
	case errors.Is(err, auctionerrors.ErrAuctionHasBids):
		return http.StatusConflict, "auction with bids cannot be deleted"
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return http.StatusBadRequest, "auction is not active"
	case errors.Is(err, auctionerrors.ErrAuctionExpired):
		return http.StatusBadRequest, "auction has ended"
	case errors.Is(err, auctionerrors.ErrSelfBidForbidden):
		return http.StatusBadRequest, "you cannot bid on your own auction"
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, auctionerrors.ErrConflict):
		return http.StatusConflict, "bid lost a concurrent update, retry with the refreshed price"
	case errors.Is(err, auctionerrors.ErrInvalidBid), errors.Is(err, auctionerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid request details"
	case errors.Is(err, auctionerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	case errors.Is(err, auctionerrors.ErrUserNoBids):
		return http.StatusOK, "no bids found for user"
	case errors.Is(err, auctionerrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable, retry later"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// ActorID extracts the gateway-injected user identity from the request.
func ActorID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	return userID, userID != ""
}

// RequireActor aborts with 401 when no identity accompanies the request.
func RequireActor(c *gin.Context, handlerName string) (string, bool) {
	userID, ok := ActorID(c)
	if !ok {
		err := errors.New("missing user identity")
		utils.JSONError(c, http.StatusUnauthorized, err, "missing user identity")
		utils.Warn(handlerName+": missing identity", map[string]any{"path": c.Request.URL.Path})
	}
	return userID, ok
}

// PageParams parses page/limit query parameters with sane bounds.
func PageParams(c *gin.Context, defaultLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}

// ToBidResponse converts a bid row to its wire shape.
func ToBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		IsWinning: bid.IsWinning,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToBidResponses converts a page of bid rows.
func ToBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, ToBidResponse(b))
	}
	return out
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
