package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepository "carrental/internal/bookings/repository"
	carsrepository "carrental/internal/cars/repository"
	chatsrepository "carrental/internal/chats/repository"
	"carrental/internal/migrations/mongo/validators"
	"carrental/pkg/logger"
)

var (
	CarsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "availability", Value: 1}, {Key: "unavailable_until", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "renter_id", Value: 1},
			{Key: "booking_date", Value: -1},
			{Key: "_id", Value: -1},
		}},
		{Keys: bson.D{{Key: "car_id", Value: 1}, {Key: "start_date", Value: 1}}},
	}

	ChatMessagesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "room_id", Value: 1},
			{Key: "timestamp", Value: 1},
			{Key: "seq", Value: 1},
		}},
	}

	ChatSummariesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		carsrepository.CarsCollection: {
			Indexes:   CarsIndexes,
			Validator: validators.CarValidator,
		},
		bookingsrepository.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		chatsrepository.MessagesCollection: {
			Indexes:   ChatMessagesIndexes,
			Validator: validators.ChatMessageValidator,
		},
		chatsrepository.CountersCollection: {},
		chatsrepository.SummariesCollection: {
			Indexes:   ChatSummariesIndexes,
			Validator: validators.ChatSummaryValidator,
		},
	}
}

// RunMigration creates every collection with its validator and indexes.
// Re-running it is safe: existing collections get their validator updated.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	defs := collections()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully", "collections", len(names))
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
