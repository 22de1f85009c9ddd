package router

import (
	"strings"

	"chainvault-backend/internal/config"
	"chainvault-backend/internal/handlers"
	"chainvault-backend/internal/middleware"
	"chainvault-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handlers the handler set wired into the route tree
type Handlers struct {
	Vault        *handlers.VaultHandler
	Strategy     *handlers.StrategyHandler
	Orchestrator *handlers.OrchestratorHandler
	AdminAuth    *handlers.AdminAuthHandler
	Push         *services.WebSocketPushService
}

// corsMiddleware applies the configured origin whitelist
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowedOrigins := []string{"*"}
		allowCredentials := false
		maxAge := "3600"
		if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
		}

		origin := c.GetHeader("Origin")
		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == "OPTIONS" {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// SetupRouter builds the gin engine with all routes registered
func SetupRouter(h *Handlers, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", handlers.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", handlers.WebSocketHandler(h.Push))

	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	api := r.Group("/api")
	{
		// Authentication
		api.POST("/admin/login", h.AdminAuth.AdminLoginHandler)
		api.POST("/admin/totp/generate", h.AdminAuth.GenerateTOTPSecretHandler)

		// Vault reads are public; deposits and withdrawals carry their own
		// holder addressing.
		vault := api.Group("/vault")
		{
			vault.GET("/ledgers", h.Vault.ListLedgersHandler)
			vault.GET("/ledgers/:tokenId", h.Vault.GetLedgerHandler)
			vault.GET("/ledgers/:tokenId/share-price", h.Vault.GetSharePriceHandler)
			vault.GET("/positions/:tokenId/:holder", h.Vault.GetPositionHandler)
			vault.POST("/deposit", h.Vault.DepositHandler)
			vault.POST("/withdraw", h.Vault.WithdrawHandler)
			vault.POST("/assets", adminAuth.RequireAdminAuth(), h.Vault.AddAssetHandler)
		}

		// Strategy registry reads are public; mutations are admin-only.
		api.GET("/strategies", h.Strategy.ListStrategiesHandler)
		api.GET("/strategies/:id", h.Strategy.GetStrategyHandler)
		api.GET("/chains", h.Strategy.ListChainsHandler)

		// Operation status
		api.GET("/operations", h.Orchestrator.ListOperationsHandler)
		api.GET("/operations/:id", h.Orchestrator.GetOperationHandler)
		api.GET("/allocations", h.Orchestrator.ListAllocationsHandler)

		admin := api.Group("", adminAuth.RequireAdminAuth())
		{
			admin.POST("/strategies", h.Strategy.RegisterStrategyHandler)
			admin.PUT("/strategies/:id/active", h.Strategy.SetStrategyActiveHandler)
			admin.POST("/chains", h.Strategy.AddChainHandler)

			orch := admin.Group("/orchestrator")
			{
				orch.POST("/invest", h.Orchestrator.InvestHandler)
				orch.POST("/harvest", h.Orchestrator.HarvestHandler)
				orch.POST("/withdraw", h.Orchestrator.WithdrawHandler)
				orch.POST("/fees", h.Orchestrator.CreditFeesHandler)
				orch.GET("/fees", h.Orchestrator.GetFeeBalanceHandler)
			}
		}
	}

	return r
}
