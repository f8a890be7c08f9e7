package main

import (
	"innkeep/internal/reservations/events"
	"innkeep/internal/reservations/handler"
	"innkeep/internal/reservations/pipeline"
	"innkeep/internal/reservations/repository"
	"innkeep/internal/reservations/service"
	"innkeep/internal/reservations/validator"
	"innkeep/pkg/app"
	"innkeep/pkg/cache"
	"innkeep/pkg/config"
	"innkeep/pkg/idgen"
	"innkeep/pkg/kafka"
	kafka_config "innkeep/pkg/kafka/config"
	kafka_middleware "innkeep/pkg/kafka/middleware"
	"innkeep/pkg/lockstore"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Reservations service")

	cfg.SetMongo()
	if cfg.LockBackend == config.LockBackendRedis {
		cfg.SetRedis()
	}

	serverApp := app.NewApplication()

	locks, stopLocks := initLockStore(cfg)
	deposits, stopDeposits := initCacheStore(cfg)
	publisher := initEvents(cfg, serverApp)

	bookingRepo := repository.NewMongoBookingRepository(cfg)

	pipe := pipeline.New(bookingRepo, locks, deposits, cfg.Log, pipeline.Config{
		QueueCapacity:  cfg.QueueCapacity,
		MaxRetries:     cfg.CommandRetries,
		BackoffBase:    cfg.CommandBackoff,
		PaymentTimeout: cfg.PaymentTimeout,
		Events:         publisher,
	})

	reservationService := service.NewReservationService(
		bookingRepo,
		locks,
		deposits,
		pipe,
		idgen.New(),
		validator.NewReservationValidator(cfg.Log),
		cfg,
	)

	reservationHandler := handler.NewReservationHandler(reservationService, cfg.Log)
	healthHandler := handler.NewHealthHandler(
		cfg.Client.Mongo,
		cfg.Client.Redis,
		func() int { return pipe.Stats().Pending },
		cfg.Log,
	)

	serverApp.SetApp(cfg, reservationHandler, healthHandler, pipe, deposits)
	if stopLocks != nil {
		serverApp.OnShutdown(stopLocks)
	}
	if stopDeposits != nil {
		serverApp.OnShutdown(stopDeposits)
	}
	serverApp.OnShutdown(func() { cfg.Client.GracefulShutdown(cfg.Log) })
	serverApp.Run()
}

func initLockStore(cfg *config.Config) (lockstore.LockStore, func()) {
	if cfg.LockBackend == config.LockBackendRedis {
		cfg.Log.Info("Using Redis lock store")
		return lockstore.NewRedisStore(cfg.Client.Redis), nil
	}

	cfg.Log.Info("Using in-memory lock store")
	store := lockstore.NewMemoryStore()
	return store, store.Stop
}

func initCacheStore(cfg *config.Config) (cache.Store, func()) {
	if cfg.LockBackend == config.LockBackendRedis {
		return cache.NewRedisStore(cfg.Client.Redis), nil
	}

	store := cache.NewMemoryStore()
	return store, store.Stop
}

// initEvents builds the Kafka lifecycle publisher, or nil when disabled,
// which makes the pipeline fall back to its no-op publisher.
func initEvents(cfg *config.Config, serverApp *app.Application) pipeline.EventPublisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka event publishing disabled")
		return nil
	}

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaEventsTopic, cfg.KafkaDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Kafka event publishing enabled",
		"topic", cfg.KafkaEventsTopic,
		"dlq_topic", cfg.KafkaDLQTopic,
	)
	return events.NewPublisher(producer, cfg.Log)
}
