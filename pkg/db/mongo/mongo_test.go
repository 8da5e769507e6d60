package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestID(t *testing.T) {
	oid := primitive.NewObjectID()

	if got, ok := ID(oid.Hex()).(primitive.ObjectID); !ok || got != oid {
		t.Errorf("ID(hex) = %v, want ObjectID %v", ID(oid.Hex()), oid)
	}
	if got, ok := ID("car-42").(string); !ok || got != "car-42" {
		t.Errorf("ID(plain) = %v, want string", ID("car-42"))
	}
	if HexID(oid) != oid.Hex() || HexID("car-42") != "car-42" || HexID(42) != "" {
		t.Error("HexID returned unexpected values")
	}
}

func TestIDsFilter(t *testing.T) {
	f := IDsFilter([]string{"a", "b"})
	in := f["_id"].(bson.M)["$in"].([]any)
	if len(in) != 2 || in[0] != "a" {
		t.Errorf("unexpected filter: %v", f)
	}
}

func TestWithTimeout_KeepsEarlierDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ctx, cancel2 := WithTimeout(parent, time.Hour)
	defer cancel2()

	pd, _ := parent.Deadline()
	cd, _ := ctx.Deadline()
	if !cd.Equal(pd) {
		t.Errorf("deadline extended: parent %v child %v", pd, cd)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline exceeded is transient")
	}
	if IsTransient(errors.New("duplicate key")) {
		t.Error("plain errors are not transient")
	}
}
