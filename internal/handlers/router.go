package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"cashback-service/internal/middleware"
)

type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AdminJWTSecret    string
}

func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())
	r.NoRoute(NotFound)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

	api.GET("/health", h.Health)
	api.POST("/track-link", h.TrackLink)

	api.POST("/webhook/awin", h.AwinWebhook)
	api.POST("/webhook/rakuten", h.RakutenWebhook)

	api.GET("/transactions/:userId", h.GetTransactions)
	api.GET("/purchases/:userId", h.GetPurchases)
	api.GET("/stats/:userId", h.GetStats)
	api.GET("/nfts/:userId", h.GetUserNFTs)
	api.GET("/wallet/:walletAddress/nfts", h.GetWalletNFTs)
	api.GET("/nft/:tokenId", h.GetNFT)

	admin := api.Group("/admin", middleware.AdminAuth(cfg.AdminJWTSecret))
	admin.GET("/postback-logs", h.GetPostbackLogs)
	admin.POST("/confirm-cashback/:transactionId", h.ConfirmCashback)
	admin.POST("/nft/:tokenId/status", h.UpdateNFTStatus)
	admin.POST("/grant-minter-role", h.GrantMinterRole)
	admin.POST("/retry-mint/:transactionId", h.RetryMint)

	contract := api.Group("/contract")
	contract.GET("/info", h.ContractInfo)
	contract.GET("/minter-role", h.MinterRole)
	contract.GET("/default-admin-role", h.DefaultAdminRole)
	contract.GET("/has-role/:role/:address", h.HasRole)
	contract.GET("/my-roles", h.MyRoles)
	contract.GET("/wallet/:walletAddress/nfts", h.ContractWalletNFTs)
	contract.GET("/nft/:tokenId", h.ContractNFT)

	return r
}
