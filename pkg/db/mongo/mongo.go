package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithTimeout bounds ctx by timeout without extending an earlier deadline.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// ID converts a hex ObjectID string to its ObjectID form and leaves any
// other identifier as a plain string, so seeded string ids keep working.
func ID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// IDFilter matches a document by _id.
func IDFilter(id string) bson.M {
	return bson.M{"_id": ID(id)}
}

// IDsFilter matches any of the given ids.
func IDsFilter(ids []string) bson.M {
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, ID(id))
	}
	return bson.M{"_id": bson.M{"$in": values}}
}

// HexID renders an inserted id the way the models carry it.
func HexID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	}
	return ""
}

// IsTransient reports whether err is a connectivity or timeout failure that
// a caller may retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
