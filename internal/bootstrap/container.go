package bootstrap

import (
	"context"

	"dermascan-be/internal/config"
	"dermascan-be/internal/controller"
	"dermascan-be/internal/handler"
	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/repository/contract"
	"dermascan-be/internal/repository/implementation"
	"dermascan-be/internal/repository/memory"
	"dermascan-be/internal/repository/unitofwork"
	"dermascan-be/internal/service"
	"dermascan-be/internal/websocket"
	"dermascan-be/pkg/llm/factory"
	pktNats "dermascan-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AnalysisController controller.IAnalysisController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. Redis and NATS are optional: without
// redis the hub stays single-instance and chat locks live in process memory,
// without NATS saved analyses are only announced over websockets.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	// 3. Model provider
	llmProvider, err := factory.NewLLMProvider(
		ctx,
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		providerBaseURL(cfg),
		providerAPIKey(cfg),
	)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider":     cfg.Ai.LLMProvider,
		"model":        cfg.Ai.LLMModel,
		"vision_model": cfg.Ai.VisionModel,
	})

	c := &Container{Logger: sysLogger}

	// 4. Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		rdb = connectRedis(ctx, cfg.App.RedisURL, sysLogger)
		if rdb != nil {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}

	var locks contract.ConversationLockRepository
	if rdb != nil {
		locks = implementation.NewRedisConversationLockRepository(rdb)
	} else {
		locks = memory.NewConversationLockRepository()
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.NotificationLog)
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run(ctx)

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.EventsTopic, pubSub)

	var bus service.EventPublisher
	if natsPub != nil {
		bus = natsPub
	}
	consumerService := service.NewConsumerService(pubSub, cfg.Keys.EventsTopic, wsHub, bus, wsLogger)

	analysisService := service.NewAnalysisService(
		llmProvider,
		cfg.Ai.VisionModel,
		cfg.App.AnalysisTimeout,
		uowFactory,
		publisherService,
		sysLogger,
	)
	chatService := service.NewChatService(
		llmProvider,
		locks,
		cfg.App.ChatLockTTL,
		cfg.Ai.ChatHistoryWindow,
		uowFactory,
		sysLogger,
	)

	// 6. Controllers
	c.AnalysisController = controller.NewAnalysisController(analysisService, cfg.App.JwtSecret)
	c.ChatController = controller.NewChatController(chatService, cfg.App.JwtSecret, cfg.App.ChatTimeout, sysLogger)
	c.NotificationHandler = handler.NewNotificationHandler(wsHub, cfg.App.JwtSecret, wsLogger)
	c.WebSocketHub = wsHub
	c.ConsumerService = consumerService
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	return c, nil
}

// Close releases broker connections in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func connectRedis(ctx context.Context, url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Failed to connect to Redis, falling back to in-process state", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func providerBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return cfg.Ai.GatewayBaseURL
}

func providerAPIKey(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "gemini" {
		return cfg.Keys.GoogleGemini
	}
	return cfg.Keys.Gateway
}
