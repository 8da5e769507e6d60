package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"carrental/pkg/client"
	kafkaconfig "carrental/pkg/kafka/config"
	"carrental/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	StorageBackend    string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ListingCacheTTL time.Duration

	Port      string
	LogLevel  string
	LogFormat string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SweepInterval  time.Duration
	EventsBackend  string
	ChatSendBuffer int
	AllowedOrigins []string
	CarSeedFile    string

	Kafka *kafkaconfig.Config

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment, validates it and exits on invalid settings.
func Load(serviceName string) *Config {
	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}

	if cfg.EventsBackend == EventsKafka {
		kcfg, err := kafkaconfig.Load()
		if err != nil {
			cfg.Log.Fatal(err.Error())
		}
		cfg.Kafka = kcfg
		cfg.Kafka.LogConfiguration(cfg.Log)
	}

	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the environment without validating it or
// attaching a logger.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		StorageBackend:    strings.ToLower(getEnvStr(EnvStorageBackend, DefaultStorageBackend)),

		RedisAddr:       getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:   getEnvStr(EnvRedisPassword, ""),
		RedisDB:         getEnvNum(EnvRedisDB, DefaultRedisDB),
		ListingCacheTTL: getEnvDuration(EnvListingCacheTTL, DefaultListingCacheTTL),

		Port:      getEnvStr(EnvPort, DefaultPort),
		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SweepInterval:  getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		EventsBackend:  strings.ToLower(getEnvStr(EnvEventsBackend, DefaultEventsBackend)),
		ChatSendBuffer: getEnvNum(EnvChatSendBuffer, DefaultChatSendBuffer),
		AllowedOrigins: getEnvList(EnvAllowedOrigins),
		CarSeedFile:    getEnvStr(EnvCarSeedFile, ""),

		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the listing cache. A blank address leaves caching off.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		cfg.Log.Info("Redis address not set, listing cache disabled")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case StorageMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !mongoSchemeRegex.MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of [mongo, memory], got: %s", cfg.StorageBackend))
	}

	switch cfg.EventsBackend {
	case EventsKafka, EventsInline:
	default:
		errors = append(errors, fmt.Sprintf("EventsBackend must be one of [kafka, inline], got: %s", cfg.EventsBackend))
	}

	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}
	if cfg.RedisAddr != "" && cfg.ListingCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("ListingCacheTTL must be positive when Redis is enabled, got: %s", cfg.ListingCacheTTL))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"SweepInterval", cfg.SweepInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ChatSendBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("ChatSendBuffer must be positive, got: %d", cfg.ChatSendBuffer))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"redis_db", cfg.RedisDB,
		"listing_cache_ttl", cfg.ListingCacheTTL,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"sweep_interval", cfg.SweepInterval,
		"events_backend", cfg.EventsBackend,
		"chat_send_buffer", cfg.ChatSendBuffer,
		"ws_allowed_origins", cfg.AllowedOrigins,
		"car_seed_file", cfg.CarSeedFile,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

var (
	mongoSchemeRegex = regexp.MustCompile(`^mongodb(\+srv)?://`)
	credentialRegex  = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^:/@]+:[^@]+@`)
)

// redactURI masks userinfo credentials of any scheme, so invalid URIs can be
// echoed in errors safely.
func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
