//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	bookingsrepository "carrental/internal/bookings/repository"
	carsrepository "carrental/internal/cars/repository"
	chatsrepository "carrental/internal/chats/repository"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "carrental"
	ConnectionTimeout   = 10 * time.Second
)

var dataCollections = []string{
	carsrepository.CarsCollection,
	bookingsrepository.CollectionName,
	chatsrepository.MessagesCollection,
	chatsrepository.CountersCollection,
	chatsrepository.SummariesCollection,
}

type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanDatabase empties the data collections but keeps their validators
// and indexes.
func (m *MongoHelper) CleanDatabase(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range dataCollections {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean collection %s: %v", name, err)
		}
	}
}

// InsertCar stores a free car with a caller-chosen string id.
func (m *MongoHelper) InsertCar(t *testing.T, car model.Car) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	car.Availability = model.AvailabilityFree
	if _, err := m.Database.Collection(carsrepository.CarsCollection).InsertOne(ctx, car); err != nil {
		t.Fatalf("failed to insert car %s: %v", car.ID, err)
	}
}

func (m *MongoHelper) FindCar(t *testing.T, id string) model.Car {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var car model.Car
	if err := m.Database.Collection(carsrepository.CarsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&car); err != nil {
		t.Fatalf("failed to load car %s: %v", id, err)
	}
	return car
}

func (m *MongoHelper) CountDocuments(t *testing.T, collectionName string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(collectionName).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collectionName, err)
	}
	return count
}
