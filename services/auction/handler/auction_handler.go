package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"auction-house/internal/lifecycle"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/services/auction/helpers"
	"auction-house/utils"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_lifecycle_service.go -package=handler

type LifecycleServiceInterface interface {
	CreateAuction(ctx context.Context, params lifecycle.CreateAuctionParams) (model.Auction, error)
	GetAuction(ctx context.Context, id string) (model.Auction, error)
	ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]model.Auction, int64, error)
	DeleteAuction(ctx context.Context, id, actorID string) error
	StartAuction(ctx context.Context, id, actorID string) (model.Auction, error)
	EndAuction(ctx context.Context, id, actorID string) (model.Auction, error)
	CancelAuction(ctx context.Context, id, actorID string) (model.Auction, error)
}

// NotificationReader is the read-side of the notification sink used by the
// user-facing notifications endpoint.
type NotificationReader interface {
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error)
}

type AuctionHandler struct {
	service       LifecycleServiceInterface
	notifications NotificationReader
}

func NewAuctionHandler(service LifecycleServiceInterface, notifications NotificationReader) *AuctionHandler {
	return &AuctionHandler{service: service, notifications: notifications}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	sellerID, ok := helpers.RequireActor(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), lifecycle.CreateAuctionParams{
		SellerID:        sellerID,
		CategoryID:      req.CategoryID,
		Title:           req.Title,
		Description:     req.Description,
		StartingPrice:   req.StartingPrice,
		ReservePrice:    req.ReservePrice,
		MinBidIncrement: req.MinBidIncrement,
		EndTime:         req.EndTime,
		AutoExtend:      req.AutoExtend,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to create auction", map[string]any{
			"user_id": sellerID,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.ID,
		"seller_id":  sellerID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	page, limit, offset := helpers.PageParams(c, 12)

	params := repository.ListAuctionsParams{
		Status:   c.DefaultQuery("status", string(model.StatusActive)),
		SellerID: c.Query("seller_id"),
		Search:   c.Query("search"),
		SortBy:   c.DefaultQuery("sort_by", "created_at"),
		Asc:      c.Query("sort_order") == "asc",
		Limit:    limit,
		Offset:   offset,
	}
	if raw := c.Query("min_price"); raw != "" {
		if v, err := decimal.NewFromString(raw); err == nil {
			params.MinPrice = &v
		}
	}
	if raw := c.Query("max_price"); raw != "" {
		if v, err := decimal.NewFromString(raw); err == nil {
			params.MaxPrice = &v
		}
	}

	auctions, total, err := h.service.ListAuctions(c.Request.Context(), params)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ListAuctionsHandler: error listing auctions", map[string]any{"error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{
		"auctions":   auctions,
		"pagination": helpers.Pagination{Page: page, Limit: limit, Total: total},
	}, "auctions retrieved successfully")
}

// DeleteAuctionHandler handles DELETE /auctions/:auction_id
func (h *AuctionHandler) DeleteAuctionHandler(c *gin.Context) {
	actorID, ok := helpers.RequireActor(c, "DeleteAuctionHandler")
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	if err := h.service.DeleteAuction(c.Request.Context(), auctionID, actorID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("DeleteAuctionHandler: failed to delete auction", map[string]any{
			"auction_id": auctionID,
			"user_id":    actorID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "auction deleted successfully")
	helpers.LogSuccess("DeleteAuctionHandler", "auction deleted successfully", map[string]any{
		"auction_id": auctionID,
		"user_id":    actorID,
	})
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	h.transition(c, "StartAuctionHandler", h.service.StartAuction, "auction started successfully")
}

// EndAuctionHandler handles POST /auctions/:auction_id/end
func (h *AuctionHandler) EndAuctionHandler(c *gin.Context) {
	h.transition(c, "EndAuctionHandler", h.service.EndAuction, "auction ended successfully")
}

// CancelAuctionHandler handles POST /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	h.transition(c, "CancelAuctionHandler", h.service.CancelAuction, "auction cancelled successfully")
}

func (h *AuctionHandler) transition(c *gin.Context, handlerName string, op func(ctx context.Context, id, actorID string) (model.Auction, error), successMsg string) {
	actorID, ok := helpers.RequireActor(c, handlerName)
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	auction, err := op(c.Request.Context(), auctionID, actorID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn(handlerName+": transition rejected", map[string]any{
			"auction_id": auctionID,
			"user_id":    actorID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, successMsg)
	helpers.LogSuccess(handlerName, successMsg, map[string]any{
		"auction_id": auction.ID,
		"status":     auction.Status,
		"user_id":    actorID,
	})
}

// GetNotificationsHandler handles GET /users/:user_id/notifications
func (h *AuctionHandler) GetNotificationsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	_, limit, offset := helpers.PageParams(c, 20)

	items, err := h.notifications.ListNotifications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetNotificationsHandler: error retrieving notifications", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}
	if items == nil {
		items = []model.Notification{}
	}

	utils.JSONResponse(c, http.StatusOK, items, "notifications retrieved successfully")
}
