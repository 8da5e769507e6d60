package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStorageBackend    = "STORAGE_BACKEND"

	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvRedisDB         = "REDIS_DB"
	EnvListingCacheTTL = "LISTING_CACHE_TTL"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSweepInterval  = "SWEEP_INTERVAL"
	EnvEventsBackend  = "EVENTS_BACKEND"
	EnvChatSendBuffer = "CHAT_SEND_BUFFER"
	EnvAllowedOrigins = "WS_ALLOWED_ORIGINS"
	EnvCarSeedFile    = "CAR_SEED_FILE"
)
