package server

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"supportdesk/config"
	"supportdesk/handlers"
	"supportdesk/kafka"
	"supportdesk/limiter"
	custommiddleware "supportdesk/middleware"
	"supportdesk/models"
	"supportdesk/realtime"
	rediscache "supportdesk/redis"
	"supportdesk/repository"
	"supportdesk/services"
)

type Server struct {
	Echo   *echo.Echo
	DB     *gorm.DB
	Config *config.Config
	Hub    *realtime.Hub

	RulesService *services.RulesService

	AuthHandler       *handlers.AuthHandler
	RoomHandler       *handlers.RoomHandler
	QueueHandler      *handlers.QueueHandler
	ChatSocketHandler *handlers.ChatSocketHandler

	kafkaProducer *kafka.Producer
	kafkaConsumer *kafka.Consumer
	consumerStop  context.CancelFunc
	redisClient   *rediscache.RedisClient
}

func NewServer() *Server {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := repository.NewDB(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatal("Failed to auto-migrate database:", err)
	}
	store := repository.NewStore(db)

	var redisClient *rediscache.RedisClient
	var lim *limiter.Manager
	if cfg.Redis.Enabled {
		redisClient, err = rediscache.NewRedisClient(&rediscache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		lim = limiter.NewManager(redisClient.Client, &limiter.FixedWindowStrategy{})
	}

	hub := realtime.NewHub()

	// With Kafka enabled every event also goes to the chat-events topic and
	// the consumer group feeds events from other instances back into the
	// local hub. Without it the hub alone serves single-instance fan-out.
	var pub realtime.Publisher = hub
	var producer *kafka.Producer
	var consumer *kafka.Consumer
	var consumerStop context.CancelFunc
	if cfg.Kafka.Enabled {
		saramaCfg, err := newSaramaConfig(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to build kafka config:", err)
		}
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, saramaCfg)
		if err != nil {
			log.Fatal("Failed to create kafka producer:", err)
		}
		relay := kafka.NewRelay(hub, producer, cfg.Kafka.Topic)
		pub = relay

		consumerCfg, err := newSaramaConfig(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to build kafka consumer config:", err)
		}
		consumer, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID,
			[]string{cfg.Kafka.Topic}, consumerCfg, kafka.NewEventHandler(hub, relay.Origin()))
		if err != nil {
			log.Fatal("Failed to create kafka consumer:", err)
		}
		var consumerCtx context.Context
		consumerCtx, consumerStop = context.WithCancel(context.Background())
		go func() {
			if err := consumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
				log.Error("kafka consumer stopped:", err)
			}
		}()
	}

	authService := services.NewAuthService(store, &cfg.Auth)
	roomService := services.NewRoomService(store, pub, lim, cfg.Chat)
	queueService := services.NewQueueService(store, roomService, pub, redisClient)
	cursorService := services.NewCursorService(store)
	rulesService := services.NewRulesService(store, roomService, pub, cfg.Rules)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	allowOrigins := cfg.Server.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	s := &Server{
		Echo:              e,
		DB:                db,
		Config:            &cfg,
		Hub:               hub,
		RulesService:      rulesService,
		AuthHandler:       handlers.NewAuthHandler(authService),
		RoomHandler:       handlers.NewRoomHandler(roomService, queueService, cursorService, rulesService, cfg.Chat.AutoAssign),
		QueueHandler:      handlers.NewQueueHandler(queueService, redisClient),
		ChatSocketHandler: handlers.NewChatSocketHandler(hub, roomService, cursorService),
		kafkaProducer:     producer,
		kafkaConsumer:     consumer,
		consumerStop:      consumerStop,
		redisClient:       redisClient,
	}

	authMiddleware := custommiddleware.AuthMiddleware(authService)
	s.SetupRoutes(authMiddleware)
	return s
}

func newSaramaConfig(cfg *config.KafkaConfig) (*sarama.Config, error) {
	if cfg.Mechanism == "SCRAM-SHA-256" || cfg.Mechanism == "SCRAM-SHA-512" {
		return kafka.NewSaramaConfigWithSCRAM(cfg, cfg.Mechanism)
	}
	return kafka.NewSaramaConfig(cfg)
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}

// Shutdown stops the HTTP listener and the Kafka plumbing.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.consumerStop != nil {
		s.consumerStop()
	}
	if s.kafkaConsumer != nil {
		s.kafkaConsumer.Close()
	}
	if s.kafkaProducer != nil {
		s.kafkaProducer.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	return s.Echo.Shutdown(ctx)
}
