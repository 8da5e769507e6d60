package validators

import "go.mongodb.org/mongo-driver/bson"

// CarValidator accepts both seeded string ids and generated ObjectIDs. The
// reservation window fields exist only while a car is reserved.
var CarValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"owner_id", "model", "price", "availability"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": []string{"objectId", "string"},
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"model": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"category": bson.M{
				"bsonType": "string",
			},

			"availability": bson.M{
				"enum": []string{"free", "reserved"},
			},

			"unavailable_from": bson.M{
				"bsonType": []string{"date", "null"},
			},

			"unavailable_until": bson.M{
				"bsonType": []string{"date", "null"},
			},
		},
	},
}
