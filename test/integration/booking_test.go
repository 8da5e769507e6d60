//go:build integration

package integration

import (
	"net/http"
	"sync"
	"testing"

	bookingsrepository "carrental/internal/bookings/repository"
	"carrental/pkg/client"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/model"
	"carrental/test/integration/testutil"

	"go.mongodb.org/mongo-driver/bson"
)

type bookingEnvelope struct {
	Data model.Booking `json:"data"`
}

type errorEnvelope struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func bookingBody(carID, renterID, from, until string) map[string]any {
	return map[string]any{
		"car_id":    carID,
		"renter_id": renterID,
		"from":      from,
		"until":     until,
		"renter": map[string]string{
			"name":            "Nur Aisyah",
			"identity_number": "950505-10-5566",
			"phone":           "012-3456789",
			"email":           "aisyah@example.com",
		},
	}
}

func TestBookingFlow(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo := env.Setup(t)
	defer env.Cleanup(t, mongo)

	mongo.InsertCar(t, model.Car{ID: "it-car-1", OwnerID: "owner-1", Model: "Perodua Bezza", Price: 100, Category: "Sedan"})

	bookings := client.NewBookingClient(env.ServerURL)

	resp, err := bookings.Create(bookingBody("it-car-1", "renter-x", "2030-06-01", "2030-06-05"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	var created bookingEnvelope
	if err := resp.DecodeJSON(&created); err != nil {
		t.Fatal(err)
	}
	if created.Data.Price != 500 {
		t.Errorf("price = %v, want 500", created.Data.Price)
	}

	car := mongo.FindCar(t, "it-car-1")
	if !car.IsReserved() {
		t.Fatalf("car availability = %q, want reserved", car.Availability)
	}

	resp, err = bookings.Create(bookingBody("it-car-1", "renter-y", "2030-06-03", "2030-06-06"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second create status = %d, want 409", resp.StatusCode)
	}
	var conflict errorEnvelope
	if err := resp.DecodeJSON(&conflict); err != nil || conflict.Code != apperrors.CodeCarUnavailable {
		t.Errorf("conflict body = %s", resp.Body)
	}
	if n := mongo.CountDocuments(t, bookingsrepository.CollectionName, bson.M{"renter_id": "renter-y"}); n != 0 {
		t.Errorf("losing renter has %d bookings", n)
	}

	resp, err = bookings.Latest("renter-x")
	if err != nil {
		t.Fatal(err)
	}
	var latest bookingEnvelope
	if err := resp.DecodeJSON(&latest); err != nil || latest.Data.ID != created.Data.ID {
		t.Errorf("latest = %s", resp.Body)
	}

	resp, err = bookings.Latest("renter-y")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("latest for renter without bookings = %d, want 404", resp.StatusCode)
	}
}

func TestConcurrentBookingsSingleWinner(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo := env.Setup(t)
	defer env.Cleanup(t, mongo)

	mongo.InsertCar(t, model.Car{ID: "it-car-2", OwnerID: "owner-1", Model: "Proton Saga", Price: 70})

	const renters = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := 0; i < renters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bookings := client.NewBookingClient(env.ServerURL)
			resp, err := bookings.Create(bookingBody("it-car-2", "renter-"+string(rune('a'+i)), "2030-07-01", "2030-07-02"))
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			statuses[resp.StatusCode]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if statuses[http.StatusCreated] != 1 || statuses[http.StatusConflict] != renters-1 {
		t.Errorf("statuses = %v, want one 201 and %d 409", statuses, renters-1)
	}
	if n := mongo.CountDocuments(t, bookingsrepository.CollectionName, bson.M{"car_id": "it-car-2"}); n != 1 {
		t.Errorf("bookings for car = %d, want 1", n)
	}
}

func TestBookingValidation(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo := env.Setup(t)
	defer env.Cleanup(t, mongo)

	mongo.InsertCar(t, model.Car{ID: "it-car-3", OwnerID: "owner-1", Model: "Honda City", Price: 130})

	body := bookingBody("it-car-3", "renter-x", "2030-08-01", "2030-08-02")
	body["renter"].(map[string]string)["phone"] = "12345"

	resp, err := client.NewBookingClient(env.ServerURL).Create(body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var verr errorEnvelope
	if err := resp.DecodeJSON(&verr); err != nil || verr.Details["field"] != "renter.phone" {
		t.Errorf("body = %s", resp.Body)
	}
	if car := mongo.FindCar(t, "it-car-3"); car.IsReserved() {
		t.Error("rejected booking reserved the car")
	}
}
