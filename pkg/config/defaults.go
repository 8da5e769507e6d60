package config

import "time"

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	EventsKafka  = "kafka"
	EventsInline = "inline"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "carrental"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStorageBackend    = StorageMongo

	DefaultRedisAddr       = ""
	DefaultRedisDB         = 0
	DefaultListingCacheTTL = 30 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSweepInterval  = 1 * time.Minute
	DefaultEventsBackend  = EventsInline
	DefaultChatSendBuffer = 64
)
