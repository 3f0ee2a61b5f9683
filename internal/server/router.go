package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auction-house/internal/config"
	"auction-house/internal/realtime"
	handler "auction-house/services/auction/handler"
)

// Deps carries everything the router wires together.
type Deps struct {
	Lifecycle     handler.LifecycleServiceInterface
	Bidding       handler.BiddingServiceInterface
	Notifications handler.NotificationReader
	Hub           *realtime.Hub
	Realtime      config.RealtimeConfig
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(IdentityMiddleware)      // gateway-injected identity

	auctionHandler := handler.NewAuctionHandler(deps.Lifecycle, deps.Notifications)
	biddingHandler := handler.NewBiddingHandler(deps.Bidding)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.DELETE("/:auction_id", auctionHandler.DeleteAuctionHandler)
		auctions.POST("/:auction_id/start", auctionHandler.StartAuctionHandler)
		auctions.POST("/:auction_id/end", auctionHandler.EndAuctionHandler)
		auctions.POST("/:auction_id/cancel", auctionHandler.CancelAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
	}

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.PlaceBidHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
		users.GET("/:user_id/notifications", auctionHandler.GetNotificationsHandler)
	}

	if deps.Hub != nil {
		router.GET("/ws", realtime.ServeWS(deps.Hub, deps.Bidding, deps.Realtime))
	}

	return router
}
