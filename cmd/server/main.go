package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/config"
	"github.com/opencove/cove/internal/gateway"
	"github.com/opencove/cove/internal/handler"
	"github.com/opencove/cove/internal/repository"
	"github.com/opencove/cove/internal/router"
	"github.com/opencove/cove/internal/service"
	"github.com/opencove/cove/internal/storage"
	"github.com/opencove/cove/pkg/constant"
)

func main() {
	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	if err := repos.AutoMigrate(); err != nil {
		log.CtxError(ctx, "schema migration failed: %v", err)
		panic(err)
	}

	// Initialize object storage
	objectStore, err := storage.NewMinioStore(ctx, &cfg.Storage)
	if err != nil {
		log.CtxError(ctx, "failed to initialize object storage: %v", err)
		panic(err)
	}

	// Initialize services
	authService := service.NewAuthService(repos.User, cfg, repos.Redis)
	userService := service.NewUserService(repos.User)
	convService := service.NewConversationService(repos)
	msgService := service.NewMessageService(repos)
	notifService := service.NewNotificationService(repos)
	storageService := service.NewStorageService(objectStore, &cfg.Storage)

	// Initialize feed gateway
	feedServer := gateway.NewServer(cfg, repos.Redis, authService)

	// Wire feed pusher into services
	msgService.SetPusher(feedServer)
	convService.SetPusher(feedServer)
	authService.SetKicker(feedServer)

	// Start feed gateway
	feedServer.Run(ctx)
	log.CtxInfo(ctx, "feed gateway started")

	// Ensure the global room exists
	if err := convService.EnsureLobby(ctx); err != nil {
		log.CtxError(ctx, "failed to ensure lobby: %v", err)
		panic(err)
	}

	// Initialize handlers
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Conversation: handler.NewConversationHandler(convService),
		Message:      handler.NewMessageHandler(msgService),
		Notification: handler.NewNotificationHandler(notifService),
		Upload:       handler.NewUploadHandler(storageService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, feedServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
