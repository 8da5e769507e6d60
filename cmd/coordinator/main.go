package main

import (
	"context"
	"os"

	bookingshandler "carrental/internal/bookings/handler"
	bookingsrepository "carrental/internal/bookings/repository"
	bookingsservice "carrental/internal/bookings/service"
	"carrental/internal/bookings/validator"
	"carrental/internal/cars/cache"
	carshandler "carrental/internal/cars/handler"
	carsrepository "carrental/internal/cars/repository"
	carsservice "carrental/internal/cars/service"
	"carrental/internal/cars/sweeper"
	chatshandler "carrental/internal/chats/handler"
	"carrental/internal/chats/projector"
	"carrental/internal/chats/registry"
	"carrental/internal/chats/relay"
	chatsrepository "carrental/internal/chats/repository"
	chatsservice "carrental/internal/chats/service"
	"carrental/internal/events"
	"carrental/pkg/app"
	"carrental/pkg/clock"
	"carrental/pkg/config"
	"carrental/pkg/kafka"
	kafkamiddleware "carrental/pkg/kafka/middleware"
)

const ServiceName = "coordinator"

type stores struct {
	cars      carsrepository.CarRepository
	bookings  bookingsrepository.BookingRepository
	messages  chatsrepository.MessageRepository
	summaries chatsrepository.SummaryRepository
}

func main() {
	cfg := config.Load(ServiceName)
	application := app.NewApplication(cfg)

	st := initStores(cfg)
	seedCars(cfg, st.cars)

	listings := initCache(cfg)
	publisher := initEvents(cfg, application, st.summaries)
	clk := clock.NewRealClock()

	ledger := carsservice.NewLedger(st.cars, listings, publisher, clk, cfg.Log)
	carService := carsservice.NewCarService(st.cars, ledger, listings, clk, cfg)
	bookingService := bookingsservice.NewBookingService(
		st.bookings,
		carService,
		ledger,
		validator.NewBookingValidator(cfg.Log),
		publisher,
		clk,
		cfg,
	)
	chatService := chatsservice.NewChatService(st.messages, st.summaries, cfg)
	chatRelay := relay.New(registry.New(), st.messages, publisher, clk, cfg.Log, cfg.ChatSendBuffer)

	application.AddWorker(sweeper.New(ledger, clk, cfg.SweepInterval, cfg.Log))

	application.SetApp(
		chatshandler.NewChatSocketHandler(chatRelay, cfg.AllowedOrigins, cfg.Log),
		carshandler.NewCarHandler(carService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		chatshandler.NewChatHandler(chatService, cfg.Log),
	)
	application.Run()
}

func initStores(cfg *config.Config) stores {
	if cfg.StorageBackend == config.StorageMemory {
		cfg.Log.Warn("Using in-memory storage, data is lost on restart")
		return stores{
			cars:      carsrepository.NewMemoryCarRepository(),
			bookings:  bookingsrepository.NewMemoryBookingRepository(),
			messages:  chatsrepository.NewMemoryMessageRepository(),
			summaries: chatsrepository.NewMemorySummaryRepository(),
		}
	}

	cfg.SetMongo()
	return stores{
		cars:      carsrepository.NewMongoCarRepository(cfg),
		bookings:  bookingsrepository.NewMongoBookingRepository(cfg),
		messages:  chatsrepository.NewMongoMessageRepository(cfg),
		summaries: chatsrepository.NewMongoSummaryRepository(cfg),
	}
}

func seedCars(cfg *config.Config, repo carsrepository.CarRepository) {
	if cfg.CarSeedFile == "" {
		return
	}
	f, err := os.Open(cfg.CarSeedFile)
	if err != nil {
		cfg.Log.Fatal("Failed to open car seed file", "path", cfg.CarSeedFile, "error", err)
	}
	defer f.Close()

	n, err := carsrepository.Seed(context.Background(), repo, f)
	if err != nil {
		cfg.Log.Fatal("Failed to seed cars", "path", cfg.CarSeedFile, "error", err)
	}
	cfg.Log.Info("Seeded cars", "path", cfg.CarSeedFile, "inserted", n)
}

func initCache(cfg *config.Config) cache.ListingCache {
	cfg.SetRedis()
	if cfg.Client.Redis == nil {
		return cache.NewNoopCache()
	}
	return cache.NewRedisCache(cfg.Client.Redis, cfg.ListingCacheTTL)
}

// initEvents wires the event bus. With Kafka the summary projector consumes
// the topic like any other subscriber; inline it is called synchronously.
func initEvents(cfg *config.Config, application *app.Application, summaries chatsrepository.SummaryRepository) events.Publisher {
	chatProjector := projector.New(summaries, cfg.Log)

	if cfg.EventsBackend == config.EventsInline {
		dispatcher := events.NewDispatcher(ServiceName, cfg.Log)
		dispatcher.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
		dispatcher.Use(kafkamiddleware.MetricsConsumerMiddleware())
		dispatcher.Subscribe(events.TypeChatMessageAppended, chatProjector.Handle)
		cfg.Log.Info("Domain events dispatched inline")
		return dispatcher
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafkamiddleware.MetricsProducerMiddleware())

	consumer, err := kafka.NewConsumer(cfg.Kafka, cfg.Log, chatProjector.Handle)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafkamiddleware.MetricsConsumerMiddleware())

	application.AddWorker(consumer)
	application.OnShutdown(consumer)
	application.OnShutdown(producer)
	cfg.Log.Info("Domain events published to Kafka", "topic", cfg.Kafka.EventsTopic)
	return events.NewKafkaPublisher(producer, ServiceName)
}
