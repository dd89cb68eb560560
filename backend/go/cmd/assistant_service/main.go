package main

import (
	"Friday/backend/go/internal/api"
	"Friday/backend/go/internal/assistant"
	"Friday/backend/go/internal/config"
	"Friday/backend/go/internal/database/kafka"
	"Friday/backend/go/internal/database/mongo"
	"Friday/backend/go/internal/database/redis"
	"Friday/backend/go/internal/discovery/etcd"
	"Friday/backend/go/internal/dispatcher"
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/scheduler"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/internal/tasks"
	httpclient "Friday/backend/go/pkg/http"
	"Friday/backend/go/pkg/logger"
	"Friday/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "backend/go/internal/config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)
	serviceLogger := logger.New("AssistantService")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var apiOpts []api.Option

	// Record store
	var recordStore store.RecordStore
	switch cfg.Store.Backend {
	case "mongo":
		db, err := mongo.Database(&cfg.Databases.MongoDB)
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		recordStore = store.NewMongoStore(db, cfg.Store.RecordURLBase)
		apiOpts = append(apiOpts, api.WithHealthCheck("mongodb", mongo.HealthCheck))
		serviceLogger.Info("Successfully connected to MongoDB")
	default:
		recordStore = store.NewMemoryStore(cfg.Store.RecordURLBase)
		serviceLogger.Warn("Using in-memory record store, records are lost on restart")
	}

	// Completion oracle
	oracle, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		serviceLogger.WithError(err).Fatal("Failed to create LLM client")
	}

	// 记录日期、提示词日期和每日报告共用调度器时区的时钟
	now := cfg.Scheduler.Clock(time.Now)

	registry := tasks.NewDefaultRegistry(tasks.Deps{
		Store:              recordStore,
		Oracle:             oracle,
		Logger:             logger.New("tasks"),
		Now:                now,
		Collections:        cfg.Store.Collections,
		TieBreakConfidence: cfg.Assistant.TieBreakConfidence,
		QueryLimit:         cfg.Assistant.QueryLimit,
		Currency:           cfg.Assistant.DefaultCurrency,
	})

	// Dispatcher, optionally publishing executions to Kafka
	dispatcherOpts := []dispatcher.Option{dispatcher.WithLogger(logger.New("dispatcher")), dispatcher.WithClock(now)}
	var (
		kafkaClient *kafka.KafkaClient
		publisher   *kafka.ExecutionPublisher
	)
	if cfg.Events.Enabled {
		kafkaClient, err = kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to connect to Kafka")
		}
		publisher = kafka.NewExecutionPublisher(kafkaClient, cfg.Events.Topic)
		dispatcherOpts = append(dispatcherOpts, dispatcher.WithSink(publisher))
		apiOpts = append(apiOpts, api.WithHealthCheck("kafka", kafkaClient.HealthCheck))
		serviceLogger.Info("Publishing task executions to Kafka topic " + cfg.Events.Topic)
	}
	taskDispatcher := dispatcher.New(registry, dispatcherOpts...)

	// Conversation context
	processorOpts := []assistant.Option{assistant.WithLogger(logger.New("assistant")), assistant.WithClock(now)}
	if cfg.Assistant.ContextBackend == "redis" {
		rdb, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to connect to Redis")
		}
		ttl := time.Duration(cfg.Assistant.ContextTTLHours) * time.Hour
		processorOpts = append(processorOpts, assistant.WithContextStore(
			assistant.NewRedisContextStore(rdb, cfg.Assistant.HistoryCap, ttl)))
		apiOpts = append(apiOpts, api.WithHealthCheck("redis", redis.HealthCheck))
	}

	// Daily report scheduler
	var dailyScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sender := scheduler.MultiSender{
			ByPlatform: map[string]scheduler.Sender{},
			Fallback:   scheduler.LogSender{Log: logger.New("daily_report")},
		}
		if len(cfg.Scheduler.Webhooks) > 0 {
			webhook := scheduler.NewWebhookSender(httpclient.NewClient(cfg.Scheduler.Breaker, 15*time.Second), cfg.Scheduler.Webhooks)
			for platform, url := range cfg.Scheduler.Webhooks {
				if url != "" {
					sender.ByPlatform[platform] = webhook
				}
			}
		}
		dailyScheduler, err = scheduler.New(registry, oracle, sender, cfg.Scheduler,
			scheduler.WithLogger(logger.New("scheduler")), scheduler.WithClock(now))
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to create scheduler")
		}
		processorOpts = append(processorOpts, assistant.WithSubscriptions(dailyScheduler))
		apiOpts = append(apiOpts, api.WithSubscriptions(dailyScheduler))
		dailyScheduler.Start()
	}

	processor := assistant.NewProcessor(oracle, taskDispatcher, cfg.Assistant, processorOpts...)

	if cfg.Server.JWTSecret != "" {
		apiOpts = append(apiOpts, api.WithAuth(cfg.Server.JWTSecret))
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		apiOpts = append(apiOpts, api.WithRateLimiter(ratelimiter.NewKeyed(rl.Rate, rl.Capacity, 10*time.Minute)))
	}

	var registrar *etcd.Registrar
	if d := cfg.Discovery; d.Enabled {
		registrar, err = etcd.NewRegistrar(d.Endpoints, logger.New("discovery"))
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to connect to etcd")
		}
		apiOpts = append(apiOpts, api.WithHealthCheck("etcd", registrar.HealthCheck))
	}

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	api.RegisterRoutes(router, api.NewAPI(processor, taskDispatcher, logger.New("api"), apiOpts...))

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	// Start server
	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(err).Fatal("HTTP server failed to start")
		}
	}()

	// Register in etcd so other services can find us
	deregister := func() {}
	if d := cfg.Discovery; d.Enabled {
		deregister, err = registrar.Register(ctx, d.ServiceName, d.AdvertiseAddr, d.TTLSeconds)
		if err != nil {
			serviceLogger.WithError(err).Fatal("Failed to register service in etcd")
		}
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")
	deregister()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(err).Error("Server forced to shutdown")
	}

	if dailyScheduler != nil {
		dailyScheduler.Stop()
	}
	cancel()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			serviceLogger.WithError(err).Error("Error closing Kafka publisher")
		}
		if err := kafkaClient.Close(); err != nil {
			serviceLogger.WithError(err).Error("Error closing Kafka connection")
		}
	}
	if registrar != nil {
		if err := registrar.Close(); err != nil {
			serviceLogger.WithError(err).Error("Error closing etcd client")
		}
	}
	if cfg.Assistant.ContextBackend == "redis" {
		if err := redis.Close(); err != nil {
			serviceLogger.WithError(err).Error("Error closing Redis connection")
		}
	}
	if cfg.Store.Backend == "mongo" {
		if err := mongo.Close(shutdownCtx); err != nil {
			serviceLogger.WithError(err).Error("Error disconnecting from MongoDB")
		}
	}

	serviceLogger.Info("Server gracefully stopped")
}
