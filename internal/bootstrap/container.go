package bootstrap

import (
	"context"
	"log"

	"curiow-be/internal/config"
	"curiow-be/internal/controller"
	"curiow-be/internal/handler"
	"curiow-be/internal/pkg/logger"
	"curiow-be/internal/pkg/serverutils"
	"curiow-be/internal/repository/memory"
	"curiow-be/internal/repository/unitofwork"
	"curiow-be/internal/service"
	"curiow-be/internal/tracer"
	"curiow-be/internal/websocket"
	"curiow-be/pkg/answer"
	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/deepchat/store"
	"curiow-be/pkg/eventbus"
	"curiow-be/pkg/llm"
	"curiow-be/pkg/llm/factory"
	pktNats "curiow-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DeepChatController controller.IDeepChatController

	// WebSockets
	EventStreamHandler *handler.EventStreamHandler
	WebSocketHub       *websocket.Hub

	// Background
	DeepChatService service.IDeepChatService
	RelayService    service.IRelayService
	Bus             *eventbus.Bus

	Logger *logger.ZapLogger

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.New(logger.Options{
		FilePath:    cfg.App.LogFilePath,
		Level:       cfg.App.LogLevel,
		Console:     true,
		JSONConsole: cfg.IsProduction(),
		Service:     tracer.ServiceName,
	})
	// Event traffic goes to its own file only.
	eventLogger := logger.New(logger.Options{
		FilePath: cfg.App.EventLogFilePath,
		Level:    "info",
		Service:  tracer.ServiceName,
	})

	// 2. Event Bus
	bus := eventbus.New(eventLogger)

	// 3. Answer generation
	answerer := newAnswerer(cfg, sysLogger)

	// 4. Infrastructure
	c := &Container{Bus: bus, Logger: sysLogger}
	c.connectNats(cfg, eventLogger)
	c.connectRedis(cfg, sysLogger)

	wsHub := websocket.NewHub(c.rdb, eventLogger)

	// 5. Services
	deepChatStore := store.New(uowFactory, sysLogger)
	deepChatService := service.NewDeepChatService(
		deepChatStore,
		answerer,
		bus,
		memory.NewPanelRegistry(cfg.DeepChat.PanelIdleTTL),
		memory.NewDailySessionRepository(),
		cfg.DeepChat,
		sysLogger,
	)

	var publisher service.EventPublisher
	if c.natsPub != nil {
		publisher = c.natsPub
	}
	var subscriber service.EventSubscriber
	if c.natsSub != nil {
		subscriber = c.natsSub
	}
	relayService := service.NewRelayService(bus, publisher, subscriber, deepChatService, eventLogger)

	// 6. Controllers
	c.DeepChatController = controller.NewDeepChatController(deepChatService, serverutils.NewJwtMiddleware(cfg.App.JwtSecret))
	c.EventStreamHandler = handler.NewEventStreamHandler(wsHub, cfg.App.JwtSecret, eventLogger)
	c.WebSocketHub = wsHub
	c.DeepChatService = deepChatService
	c.RelayService = relayService

	return c
}

func newAnswerer(cfg *config.Config, log logger.ILogger) deepchat.Answerer {
	if cfg.DeepChat.AnswerProvider == "llm" {
		baseURL := cfg.Ai.OllamaBaseURL
		if cfg.Ai.LLMProvider == "huggingface" {
			baseURL = cfg.Ai.HuggingFaceBaseURL
		}
		llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, baseURL, cfg.Ai.HuggingFaceAPIKey)
		if err != nil {
			log.Error("Bootstrap", "Failed to initialize LLM provider", map[string]interface{}{"error": err.Error()})
		} else {
			log.Info("Bootstrap", "Using LLM answerer", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})
			return answer.NewLLMAnswerer(llmProvider,
				llm.WithTemperature(cfg.Ai.LLMTemperature),
				llm.WithMaxTokens(cfg.Ai.LLMMaxTokens),
			)
		}
	}

	log.Info("Bootstrap", "Using HTTP answerer", map[string]interface{}{"url": cfg.DeepChat.AnswerURL})
	return answer.NewHTTPAnswerer(cfg.DeepChat.AnswerURL, cfg.DeepChat.AnswerAPIKey, cfg.DeepChat.DispatchTimeout)
}

func (c *Container) connectNats(cfg *config.Config, log logger.ILogger) {
	if cfg.App.NatsURL == "" {
		return
	}
	pub, err := pktNats.NewPublisher(cfg.App.NatsURL, log)
	if err != nil {
		log.Warn("Bootstrap", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
	} else {
		c.natsPub = pub
	}
	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, log)
	if err != nil {
		log.Warn("Bootstrap", "Failed to connect to NATS subscriber", map[string]interface{}{"error": err.Error()})
	} else {
		c.natsSub = sub
	}
}

func (c *Container) connectRedis(cfg *config.Config, log logger.ILogger) {
	if cfg.App.RedisURL == "" {
		return
	}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("Bootstrap", "Redis unavailable, events stay on this instance", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return
	}
	c.rdb = rdb
}

// Start runs the websocket hub, feeds it from the bus and starts the NATS relay.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	events, err := c.Bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	go c.WebSocketHub.Pipe(events)

	return c.RelayService.Start(ctx)
}

// Health reports the optional backends as "up", "down" or "disabled".
func (c *Container) Health(ctx context.Context) map[string]string {
	status := map[string]string{"nats": "disabled", "redis": "disabled"}
	if c.natsPub != nil {
		status["nats"] = "down"
		if c.natsPub.Connected() {
			status["nats"] = "up"
		}
	}
	if c.rdb != nil {
		status["redis"] = "up"
		if err := c.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}
	return status
}

// Shutdown closes panels first so their last events still reach the bus.
func (c *Container) Shutdown() {
	c.DeepChatService.Shutdown()
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.Bus.Close(); err != nil {
		log.Printf("Failed to close event bus: %v", err)
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}
