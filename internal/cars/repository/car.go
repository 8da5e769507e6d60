package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	carserrors "carrental/internal/cars/errors"
	"carrental/pkg/config"
	mongodb "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CarsCollection = "cars"

// CarRepository owns the car documents. The availability fields are only
// changed through TryReserve, Release and ReleaseIfLapsed.
type CarRepository interface {
	Create(ctx context.Context, car *model.Car) error
	FindByID(ctx context.Context, id string) (*model.Car, error)
	// FindByCategory lists cars of one category; an empty category lists all.
	FindByCategory(ctx context.Context, category string) ([]*model.Car, error)
	// TryReserve atomically moves a free (or lapsed) car to reserved.
	TryReserve(ctx context.Context, id string, from, until, now time.Time) (*model.Car, error)
	// Release moves the car to free and reports whether it was reserved.
	Release(ctx context.Context, id string) (*model.Car, bool, error)
	// ReleaseIfLapsed frees the car only if its window ended before now.
	ReleaseIfLapsed(ctx context.Context, id string, now time.Time) (*model.Car, bool, error)
	// FindLapsed returns ids of reserved cars whose window ended before now,
	// limited to ids when it is non-nil.
	FindLapsed(ctx context.Context, now time.Time, ids []string) ([]string, error)
}

type mongoCarRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCarRepository(cfg *config.Config) CarRepository {
	return &mongoCarRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CarsCollection),
	}
}

func (r *mongoCarRepository) Create(ctx context.Context, car *model.Car) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if car.Availability == "" {
		car.Availability = model.AvailabilityFree
	}

	doc, err := toDocument(car)
	if err != nil {
		return err
	}
	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}
	car.ID = mongodb.HexID(result.InsertedID)
	return nil
}

func (r *mongoCarRepository) FindByID(ctx context.Context, id string) (*model.Car, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var car model.Car
	err := r.collection.FindOne(ctx, mongodb.IDFilter(id)).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, carserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	return &car, nil
}

func (r *mongoCarRepository) FindByCategory(ctx context.Context, category string) ([]*model.Car, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	opts := options.Find().SetSort(bson.D{{Key: "model", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer cursor.Close(ctx)

	cars := []*model.Car{}
	if err := cursor.All(ctx, &cars); err != nil {
		return nil, fmt.Errorf("failed to decode cars: %w", err)
	}
	return cars, nil
}

func (r *mongoCarRepository) TryReserve(ctx context.Context, id string, from, until, now time.Time) (*model.Car, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := mongodb.IDFilter(id)
	filter["$or"] = bson.A{
		bson.M{"availability": model.AvailabilityFree},
		bson.M{"availability": bson.M{"$exists": false}},
		bson.M{
			"availability":      model.AvailabilityReserved,
			"unavailable_until": bson.M{"$lt": now},
		},
	}
	update := bson.M{"$set": bson.M{
		"availability":      model.AvailabilityReserved,
		"unavailable_from":  from,
		"unavailable_until": until,
	}}

	var car model.Car
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&car)
	if err == nil {
		return &car, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to reserve car: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, mongodb.IDFilter(id))
	if err != nil {
		return nil, fmt.Errorf("failed to check car: %w", err)
	}
	if count == 0 {
		return nil, carserrors.ErrNotFound
	}
	return nil, carserrors.ErrConflict
}

func (r *mongoCarRepository) Release(ctx context.Context, id string) (*model.Car, bool, error) {
	return r.release(ctx, id, bson.M{"availability": model.AvailabilityReserved}, true)
}

func (r *mongoCarRepository) ReleaseIfLapsed(ctx context.Context, id string, now time.Time) (*model.Car, bool, error) {
	return r.release(ctx, id, bson.M{
		"availability":      model.AvailabilityReserved,
		"unavailable_until": bson.M{"$lt": now},
	}, false)
}

// release applies the reserved->free transition under cond. When nothing
// matched and checkExists is set, a missing car yields ErrNotFound and an
// already-free car is returned unchanged.
func (r *mongoCarRepository) release(ctx context.Context, id string, cond bson.M, checkExists bool) (*model.Car, bool, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := mongodb.IDFilter(id)
	for k, v := range cond {
		filter[k] = v
	}
	update := bson.M{
		"$set":   bson.M{"availability": model.AvailabilityFree},
		"$unset": bson.M{"unavailable_from": "", "unavailable_until": ""},
	}

	var car model.Car
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&car)
	if err == nil {
		return &car, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to release car: %w", err)
	}
	if !checkExists {
		return nil, false, nil
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *mongoCarRepository) FindLapsed(ctx context.Context, now time.Time, ids []string) ([]string, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"availability":      model.AvailabilityReserved,
		"unavailable_until": bson.M{"$lt": now},
	}
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		for k, v := range mongodb.IDsFilter(ids) {
			filter[k] = v
		}
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find lapsed reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID any `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode lapsed reservations: %w", err)
	}

	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, mongodb.HexID(d.ID))
	}
	return out, nil
}

// toDocument encodes car keeping a caller-chosen id in its canonical form.
func toDocument(car *model.Car) (bson.M, error) {
	c := *car
	c.ID = ""
	raw, err := bson.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode car: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode car: %w", err)
	}
	if car.ID != "" {
		doc["_id"] = mongodb.ID(car.ID)
	}
	return doc, nil
}
