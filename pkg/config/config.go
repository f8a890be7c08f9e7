package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"innkeep/pkg/client"
	"innkeep/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend string

	Port string

	QueueCapacity  int
	CommandRetries int
	CommandBackoff time.Duration
	RoomLockTTL    time.Duration
	PaymentTimeout time.Duration
	DepositTTL     time.Duration

	KafkaEnabled     bool
	KafkaEventsTopic string
	KafkaDLQTopic    string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		LockBackend: getEnvStr(EnvLockBackend, DefaultLockBackend),

		Port: getEnvStr(EnvPort, DefaultPort),

		QueueCapacity:  getEnvNum(EnvQueueCapacity, DefaultQueueCapacity),
		CommandRetries: getEnvNum(EnvCommandRetries, DefaultCommandRetries),
		CommandBackoff: getEnvDuration(EnvCommandBackoff, DefaultCommandBackoff),
		RoomLockTTL:    getEnvDuration(EnvRoomLockTTL, DefaultRoomLockTTL),
		PaymentTimeout: getEnvDuration(EnvPaymentTimeout, DefaultPaymentTimeout),
		DepositTTL:     getEnvDuration(EnvDepositTTL, DefaultDepositTTL),

		KafkaEnabled:     getEnvBool(EnvKafkaEnabled, false),
		KafkaEventsTopic: getEnvStr(EnvKafkaEventsTopic, DefaultKafkaEventsTopic),
		KafkaDLQTopic:    getEnvStr(EnvKafkaDLQTopic, DefaultKafkaDLQTopic),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.LevelInfo),
			Format:    logger.FormatJSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.New(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		problems = append(problems, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		problems = append(problems, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		problems = append(problems, "MongoDatabaseName cannot be empty")
	}

	if cfg.LockBackend != LockBackendMemory && cfg.LockBackend != LockBackendRedis {
		problems = append(problems, fmt.Sprintf("LockBackend must be %q or %q, got: %s", LockBackendMemory, LockBackendRedis, cfg.LockBackend))
	}
	if cfg.LockBackend == LockBackendRedis && cfg.RedisAddr == "" {
		problems = append(problems, "RedisAddr cannot be empty when LockBackend is redis")
	}

	if cfg.QueueCapacity <= 0 {
		problems = append(problems, fmt.Sprintf("QueueCapacity must be positive, got: %d", cfg.QueueCapacity))
	}
	if cfg.CommandRetries < 0 {
		problems = append(problems, fmt.Sprintf("CommandRetries cannot be negative, got: %d", cfg.CommandRetries))
	}
	if cfg.CommandBackoff <= 0 {
		problems = append(problems, fmt.Sprintf("CommandBackoff must be positive, got: %s", cfg.CommandBackoff))
	}
	if cfg.RoomLockTTL <= cfg.PaymentTimeout {
		problems = append(problems, fmt.Sprintf("RoomLockTTL (%s) must exceed PaymentTimeout (%s) so the supervisor fires before locks expire", cfg.RoomLockTTL, cfg.PaymentTimeout))
	}
	if cfg.PaymentTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("PaymentTimeout must be positive, got: %s", cfg.PaymentTimeout))
	}
	if cfg.DepositTTL <= 0 {
		problems = append(problems, fmt.Sprintf("DepositTTL must be positive, got: %s", cfg.DepositTTL))
	}

	for name, d := range map[string]time.Duration{
		"RequestTimeout":  cfg.RequestTimeout,
		"IdempotencyTTL":  cfg.IdempotencyTTL,
		"ReadTimeout":     cfg.ReadTimeout,
		"WriteTimeout":    cfg.WriteTimeout,
		"IdleTimeout":     cfg.IdleTimeout,
		"ShutdownTimeout": cfg.ShutdownTimeout,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if len(problems) > 0 {
		msg := "Configuration validation failed:\n"
		for i, p := range problems {
			msg += fmt.Sprintf("  %d. %s\n", i+1, p)
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"redis_addr", cfg.RedisAddr,
		"lock_backend", cfg.LockBackend,
		"port", cfg.Port,
		"queue_capacity", cfg.QueueCapacity,
		"command_retries", cfg.CommandRetries,
		"command_backoff", cfg.CommandBackoff,
		"room_lock_ttl", cfg.RoomLockTTL,
		"payment_timeout", cfg.PaymentTimeout,
		"deposit_ttl", cfg.DepositTTL,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_events_topic", cfg.KafkaEventsTopic,
		"request_timeout", cfg.RequestTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
