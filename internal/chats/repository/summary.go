package repository

import (
	"context"
	"fmt"

	chatserrors "carrental/internal/chats/errors"
	"carrental/pkg/config"
	mongodb "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SummariesCollection = "chat_summaries"

// SummaryRepository keeps one row per room with the last message and the
// unread count of each participant.
type SummaryRepository interface {
	// Apply folds msg into the room summary. Messages with a seq at or below
	// the stored one are ignored, so redelivery is harmless.
	Apply(ctx context.Context, msg *model.ChatMessage, participants []string) error
	ListByUser(ctx context.Context, userID string) ([]*model.ChatSummary, error)
	MarkRead(ctx context.Context, roomID, userID string) error
}

type mongoSummaryRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSummaryRepository(cfg *config.Config) SummaryRepository {
	return &mongoSummaryRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(SummariesCollection),
	}
}

func (r *mongoSummaryRepository) Apply(ctx context.Context, msg *model.ChatMessage, participants []string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	inc := bson.M{}
	for _, p := range participants {
		if p != msg.SenderID {
			inc["unread."+p] = 1
		}
	}

	filter := bson.M{
		"_id": msg.RoomID,
		"$or": bson.A{
			bson.M{"last_seq": bson.M{"$lt": msg.Seq}},
			bson.M{"last_seq": bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"participants":   participants,
			"last_message":   msg.Body,
			"last_sender_id": msg.SenderID,
			"last_seq":       msg.Seq,
			"updated_at":     msg.Timestamp,
		},
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// A newer message already landed; the upsert lost to the seq guard.
			return nil
		}
		return fmt.Errorf("failed to apply chat summary: %w", err)
	}
	return nil
}

func (r *mongoSummaryRepository) ListByUser(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat summaries: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := []*model.ChatSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode chat summaries: %w", err)
	}
	return summaries, nil
}

func (r *mongoSummaryRepository) MarkRead(ctx context.Context, roomID, userID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": roomID, "participants": userID},
		bson.M{"$set": bson.M{"unread." + userID: 0}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark chat read: %w", err)
	}
	if result.MatchedCount == 0 {
		return chatserrors.ErrRoomNotFound
	}
	return nil
}
