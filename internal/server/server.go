package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
	"github.com/iM5LB/dbot/internal/config"
	"github.com/iM5LB/dbot/internal/gameserver"
	"github.com/iM5LB/dbot/internal/gift"
	"github.com/iM5LB/dbot/internal/item"
	"github.com/iM5LB/dbot/internal/ledger"
	"github.com/iM5LB/dbot/internal/minecraft"
	"github.com/iM5LB/dbot/internal/payments"
	"github.com/iM5LB/dbot/internal/purchase"
	"github.com/iM5LB/dbot/internal/settings"
	"github.com/iM5LB/dbot/internal/user"
)

type Server struct {
	router     *gin.Engine
	db         *sqlx.DB
	config     *config.Config
	httpServer *http.Server
}

// New builds the admin API router. The fulfiller is the worker's
// manual-retry entry point; the bot and the worker run outside this
// server and share the same repositories.
func New(db *sqlx.DB, cfg *config.Config, fulfiller purchase.Fulfiller, mcClient *minecraft.Client) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	auditRepo := audit.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	userRepo := user.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db, ledgerRepo)
	giftRepo := gift.NewRepository(db, ledgerRepo)
	serverRepo := gameserver.NewRepository(db)
	settingsRepo := settings.NewRepository(db)
	paymentsRepo := payments.NewRepository(db, ledgerRepo)

	authHandler := auth.NewHandler(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret, auditRepo)
	itemHandler := item.NewHandler(db, auditRepo)
	userHandler := user.NewHandler(userRepo, ledgerRepo, auditRepo)
	purchaseHandler := purchase.NewHandler(purchaseRepo, fulfiller, auditRepo)
	giftHandler := gift.NewHandler(giftRepo, auditRepo)
	serverHandler := gameserver.NewHandler(serverRepo, mcClient, auditRepo)
	settingsHandler := settings.NewHandler(settingsRepo, auditRepo)
	auditHandler := audit.NewHandler(auditRepo)
	ledgerHandler := ledger.NewHandler(ledgerRepo)
	paymentsHandler := payments.NewHandler(paymentsRepo, userRepo, cfg.StripeWebhookSecret)

	public := router.Group("/auth")
	public.Use(RateLimitMiddleware(1, 5))
	{
		public.POST("/login", authHandler.Login)
		public.POST("/refresh", authHandler.Refresh)
	}

	router.GET("/health", Health(db))
	router.GET("/metrics", Metrics())
	router.POST("/webhooks/stripe", paymentsHandler.HandleWebhook)

	api := router.Group("/api")
	{
		api.GET("/items", itemHandler.ListAvailable)
		api.GET("/status", serverHandler.Status)
	}

	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware(cfg.JWTSecret), auth.RequireRole("admin"))
	{
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.POST("/users/:id/coins", userHandler.AdjustCoins)
		admin.PUT("/users/:id/active", userHandler.SetActive)
		admin.PUT("/users/:id/minecraft", userHandler.LinkMinecraft)
		admin.GET("/users/:id/transactions", userHandler.Transactions)

		admin.GET("/items", itemHandler.List)
		admin.GET("/items/:id", itemHandler.Get)
		admin.POST("/items", itemHandler.Create)
		admin.PUT("/items/:id", itemHandler.Update)
		admin.DELETE("/items/:id", itemHandler.Delete)

		admin.GET("/purchases", purchaseHandler.List)
		admin.GET("/purchases/stats", purchaseHandler.Stats)
		admin.GET("/purchases/:id", purchaseHandler.Get)
		admin.POST("/purchases/:id/fulfill", purchaseHandler.Fulfill)
		admin.POST("/purchases/:id/refund", purchaseHandler.Refund)

		admin.GET("/gifts", giftHandler.List)
		admin.GET("/gifts/stats", giftHandler.Stats)
		admin.POST("/gifts", giftHandler.Send)
		admin.POST("/gifts/grant", giftHandler.Grant)
		admin.POST("/gifts/:id/cancel", giftHandler.Cancel)

		admin.GET("/transactions", ledgerHandler.List)
		admin.GET("/payments", paymentsHandler.List)

		admin.GET("/servers", serverHandler.List)
		admin.POST("/servers", serverHandler.Create)
		admin.PUT("/servers/:id", serverHandler.Update)
		admin.DELETE("/servers/:id", serverHandler.Delete)
		admin.POST("/servers/:id/test", serverHandler.Test)
		admin.POST("/servers/:id/execute", serverHandler.Execute)
		admin.POST("/servers/refresh", serverHandler.Refresh)

		admin.GET("/settings", settingsHandler.All)
		admin.PUT("/settings", settingsHandler.Update)
		admin.GET("/settings/:key", settingsHandler.Get)
		admin.PUT("/settings/:key", settingsHandler.Set)
		admin.POST("/settings/validate", settingsHandler.Validate)
		admin.POST("/settings/reset", settingsHandler.Reset)

		admin.GET("/audit", auditHandler.List)
		admin.GET("/audit/stats", auditHandler.Stats)
		admin.GET("/audit/export", auditHandler.Export)
		admin.DELETE("/audit", auditHandler.Cleanup)
	}

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.httpServer = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
