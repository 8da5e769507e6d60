package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"car_id",
			"renter_id",
			"start_date",
			"end_date",
			"price",
			"payment_method",
			"renter",
			"booking_date",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"car_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"renter_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"payment_method": bson.M{
				"enum": []string{"FPX", "card", "cash", "ewallet"},
			},

			"renter": bson.M{
				"bsonType": "object",
				"required": []string{"name", "identity_number", "phone", "email"},
				"properties": bson.M{
					"name": bson.M{
						"bsonType":  "string",
						"minLength": 2,
						"maxLength": 100,
					},
					"identity_number": bson.M{
						"bsonType": "string",
						"pattern":  `^\d{6}-\d{2}-\d{4}$`,
					},
					"phone": bson.M{
						"bsonType": "string",
						"pattern":  `^01\d-\d{7,8}$`,
					},
					"email": bson.M{
						"bsonType":  "string",
						"maxLength": 254,
					},
				},
			},

			"booking_date": bson.M{
				"bsonType": "date",
			},
		},
	},
}
