package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "monogest/backend/internal/auth/jwt"
	"monogest/backend/internal/config"
	"monogest/backend/internal/middleware"
	"monogest/backend/internal/monitoring"
	"monogest/backend/internal/service"
	"monogest/backend/internal/websocket"
)

// RouterDependencies collects everything the router wires together.
type RouterDependencies struct {
	Config        *config.Config
	Mailbox       *service.MailboxController
	LogoGateway   *service.AttachmentGateway
	JWTManager    *jwtpkg.Manager
	WebSocketHub  *websocket.Hub
	Metrics       *monitoring.Metrics
	HealthChecker *monitoring.HealthChecker
	Logger        *zap.Logger
}

// NewRouter builds the Gin engine with all mailbox routes.
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitoringMW := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitoringMW.PanicRecovery())
	router.Use(monitoringMW.HTTPMetrics())

	// JSON endpoints stay small; the send endpoints raise their own limit
	// to fit attachments.
	router.Use(middleware.BodySizeLimit(1 * 1024 * 1024))

	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(deps.Mailbox, deps.LogoGateway, deps.Logger)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	sendLimit := middleware.NewRateLimiter(deps.Config.Mailbox.ReplyRatePerMin)
	uploadLimit := middleware.BodySizeLimit(deps.Config.Mailbox.MaxRequestBytes)

	if deps.HealthChecker != nil {
		router.GET("/health", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Attachment blobs served straight from the filesystem store.
	if deps.Config.ObjectStore.BaseDir != "" {
		router.Static(deps.Config.ObjectStore.BaseURL, deps.Config.ObjectStore.BaseDir)
	}

	api := router.Group("/api")
	api.Use(jwtAuth.RequireAuth())
	{
		conversations := api.Group("/conversations")
		{
			conversations.POST("", sendLimit.LimitSends(), uploadLimit, handler.createConversation)
			conversations.GET("", handler.listConversations)
			conversations.GET("/unread-count", handler.unreadCount)
			conversations.GET("/:id", handler.getConversation)
			conversations.DELETE("/:id/view", handler.closeView)
			conversations.POST("/:id/replies", sendLimit.LimitSends(), uploadLimit, handler.reply)
			conversations.POST("/:id/read", handler.markRead)
			conversations.POST("/:id/close", handler.closeConversation)
			conversations.POST("/:id/reopen", handler.reopenConversation)
		}

		api.GET("/attachments/:id/url", handler.attachmentURL)
		api.GET("/directory/eligible", handler.eligibleRecipients)
		api.POST("/branding/logo", middleware.BodySizeLimit(3*1024*1024), handler.uploadLogo)
	}

	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	return router
}
