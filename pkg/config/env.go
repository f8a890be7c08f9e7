package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvLockBackend = "LOCK_BACKEND"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvQueueCapacity    = "QUEUE_CAPACITY"
	EnvCommandRetries   = "COMMAND_MAX_RETRIES"
	EnvCommandBackoff   = "COMMAND_BACKOFF_BASE"
	EnvRoomLockTTL      = "ROOM_LOCK_TTL"
	EnvPaymentTimeout   = "PAYMENT_TIMEOUT"
	EnvDepositTTL       = "DEPOSIT_TTL"
	EnvKafkaEventsTopic = "KAFKA_EVENTS_TOPIC"
	EnvKafkaDLQTopic    = "KAFKA_EVENTS_DLQ_TOPIC"
	EnvKafkaEnabled     = "KAFKA_ENABLED"

	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL  = "IDEMPOTENCY_TTL"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
