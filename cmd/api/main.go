package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "monogest/backend/internal/auth/jwt"
	"monogest/backend/internal/cache"
	"monogest/backend/internal/config"
	"monogest/backend/internal/directory"
	"monogest/backend/internal/domain"
	"monogest/backend/internal/logger"
	"monogest/backend/internal/monitoring"
	"monogest/backend/internal/objectstore"
	"monogest/backend/internal/pool"
	"monogest/backend/internal/service"
	"monogest/backend/internal/storage"
	"monogest/backend/internal/storage/memory"
	redisstore "monogest/backend/internal/storage/redis"
	sqlstore "monogest/backend/internal/storage/sql"
	httptransport "monogest/backend/internal/transport/http"
	"monogest/backend/internal/websocket"
)

// fanoutNotifier routes replies to connected sessions. With Redis the
// conversation topics act as the delivery bus between instances and every
// hub (this one included) is fed by the subscription; without Redis the
// reply goes straight to the local hub.
type fanoutNotifier struct {
	hub   *websocket.Hub
	redis *redisstore.Client
	log   *zap.Logger
}

func (n *fanoutNotifier) NotifyNewMessage(conversationID string, msg *domain.Message) {
	if n.redis == nil {
		n.hub.NotifyNewMessage(conversationID, msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.redis.PublishNewMessage(ctx, conversationID, msg); err != nil {
		n.log.Warn("failed to publish message to redis, delivering locally",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		n.hub.NotifyNewMessage(conversationID, msg)
	}
}

// runRedisBridge forwards bus messages to the local websocket hub.
func runRedisBridge(ctx context.Context, client *redisstore.Client, hub *websocket.Hub, log *zap.Logger) {
	sub := client.SubscribeAllMessages(ctx)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case received, ok := <-sub.Channel():
			if !ok {
				return
			}
			var msg domain.Message
			if err := json.Unmarshal([]byte(received.Payload), &msg); err != nil {
				log.Warn("invalid payload on conversation topic", zap.Error(err))
				continue
			}
			hub.NotifyNewMessage(redisstore.ConversationIDFromChannel(received.Channel), &msg)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting mailbox API server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// Conversation store: SQL when configured, memory otherwise.
	var store storage.Store
	if cfg.Database.Type != "" {
		sqlStore, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			log.Fatal("failed to initialize database", zap.Error(err))
		}
		store = sqlStore
		log.Info("using SQL storage", zap.String("driver", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage")
	}
	defer store.Close()

	var redisClient *redisstore.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redisstore.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, continuing without shared cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("redis connected", zap.String("address", cfg.Redis.Address))
		}
	}

	objectStore, err := objectstore.NewFilesystemStore(cfg.ObjectStore.BaseDir, cfg.ObjectStore.BaseURL)
	if err != nil {
		log.Fatal("failed to initialize object store", zap.Error(err))
	}

	// Counterparty directory: the main app's database when configured.
	var dir directory.Directory
	if cfg.Directory.DSN != "" {
		pgDir, err := directory.NewPostgresDirectory(cfg.Directory.DSN, log)
		if err != nil {
			log.Fatal("failed to connect to directory database", zap.Error(err))
		}
		defer pgDir.Close()
		dir = pgDir
		log.Info("using postgres directory")
	} else {
		dir = directory.NewMemoryDirectory()
		log.Warn("no directory DSN configured, using an empty in-memory directory")
	}

	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthChecker()
	health.AddStoreCheck(store.Health)
	if redisClient != nil {
		health.AddRedisCheck(redisClient.Health)
	}

	gateway := service.NewAttachmentGateway(objectStore, cfg.Mailbox.AttachmentRules, log)
	logoGateway := service.NewAttachmentGateway(objectStore, cfg.Mailbox.LogoRules, log)
	resolver := service.NewRecipientResolver(dir)
	convService := service.NewConversationService(store, gateway, resolver, dir, log)

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, 24*time.Hour)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := pool.NewWorkerPool(cfg.Mailbox.NotifyWorkers, cfg.Mailbox.NotifyQueueLength, log)
	workers.Start(ctx)

	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, cfg.JWT.Secret, store, log)
	go wsHub.Run(ctx)

	convService.SetNotifier(&fanoutNotifier{hub: wsHub, redis: redisClient, log: log}, workers)
	if redisClient != nil {
		go runRedisBridge(ctx, redisClient, wsHub, log)
	}

	var listCache service.ListCache
	if redisClient != nil {
		listCache = redisClient
	}

	snapshots := cache.NewSnapshotCache()
	controller := service.NewMailboxController(
		convService, gateway, resolver, store,
		snapshots, listCache, cfg.Mailbox.ListCacheTTL, metrics, log,
	)

	scheduler := service.NewScheduler(controller, cfg.Mailbox.PollInterval, metrics, log)
	controller.SetScheduler(scheduler)
	scheduler.Start(ctx)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		Mailbox:       controller,
		LogoGateway:   logoGateway,
		JWTManager:    jwtManager,
		WebSocketHub:  wsHub,
		Metrics:       metrics,
		HealthChecker: health,
		Logger:        log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute, // large multipart uploads
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("API server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server stopped cleanly")
	}
}
