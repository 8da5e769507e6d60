package validators

import "go.mongodb.org/mongo-driver/bson"

var ChatMessageValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"room_id", "sender_id", "body", "timestamp", "seq"},
		"additionalProperties": true,

		"properties": bson.M{
			"room_id": bson.M{
				"bsonType":  "string",
				"minLength": 3,
			},

			"sender_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"body": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 4000,
			},

			"timestamp": bson.M{
				"bsonType": "date",
			},

			"seq": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
		},
	},
}

// ChatSummaryValidator keys documents by room id.
var ChatSummaryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"participants", "last_seq", "updated_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"participants": bson.M{
				"bsonType": "array",
				"minItems": 2,
				"maxItems": 2,
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"last_seq": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"unread": bson.M{
				"bsonType": "object",
			},
		},
	},
}
