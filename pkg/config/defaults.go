package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "innkeep"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	// LockBackendMemory keeps locks in-process; LockBackendRedis shares them
	// across instances behind the same contract.
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	DefaultLockBackend = LockBackendMemory

	DefaultPort = "8080"

	DefaultQueueCapacity  = 1000
	DefaultCommandRetries = 3
	DefaultCommandBackoff = 1 * time.Second
	DefaultRoomLockTTL    = 30 * time.Minute
	DefaultPaymentTimeout = 15 * time.Minute
	DefaultDepositTTL     = 30 * time.Minute

	DefaultKafkaEventsTopic = "booking.events"
	DefaultKafkaDLQTopic    = "booking.events.dlq"

	DefaultRequestTimeout  = 30 * time.Second
	DefaultIdempotencyTTL  = 24 * time.Hour
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
