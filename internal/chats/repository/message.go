package repository

import (
	"context"
	"fmt"
	"time"

	"carrental/pkg/config"
	mongodb "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MessagesCollection = "chat_messages"
	CountersCollection = "chat_counters"
)

// MessageRepository is the durable, append-only chat log.
type MessageRepository interface {
	// Append stores msg, assigning its id, sequence number and (when zero)
	// timestamp. It returns only after the write is durable.
	Append(ctx context.Context, msg *model.ChatMessage) error
	// History returns every message of roomID ordered by (timestamp, seq).
	History(ctx context.Context, roomID string) ([]*model.ChatMessage, error)
}

type mongoMessageRepository struct {
	cfg      *config.Config
	messages *mongo.Collection
	counters *mongo.Collection
}

func NewMongoMessageRepository(cfg *config.Config) MessageRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMessageRepository{
		cfg:      cfg,
		messages: db.Collection(MessagesCollection),
		counters: db.Collection(CountersCollection),
	}
}

func (r *mongoMessageRepository) Append(ctx context.Context, msg *model.ChatMessage) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	seq, err := r.nextSeq(ctx, msg.RoomID)
	if err != nil {
		return err
	}
	msg.Seq = seq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Timestamp = msg.Timestamp.Truncate(time.Millisecond)

	doc := bson.M{
		"room_id":   msg.RoomID,
		"sender_id": msg.SenderID,
		"body":      msg.Body,
		"timestamp": msg.Timestamp,
		"seq":       msg.Seq,
	}
	result, err := r.messages.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	msg.ID = mongodb.HexID(result.InsertedID)
	return nil
}

func (r *mongoMessageRepository) nextSeq(ctx context.Context, roomID string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": roomID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate chat sequence: %w", err)
	}
	return counter.Seq, nil
}

func (r *mongoMessageRepository) History(ctx context.Context, roomID string) ([]*model.ChatMessage, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "seq", Value: 1},
	})

	cursor, err := r.messages.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []*model.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	return messages, nil
}
