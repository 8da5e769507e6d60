package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	carserrors "carrental/internal/cars/errors"
	"carrental/pkg/model"
)

// Seed inserts the JSON array of cars read from r. Cars whose id already
// exists are left untouched, so seeding twice is harmless. It returns the
// number of cars inserted.
func Seed(ctx context.Context, repo CarRepository, r io.Reader) (int, error) {
	var cars []*model.Car
	if err := json.NewDecoder(r).Decode(&cars); err != nil {
		return 0, fmt.Errorf("failed to decode car seed: %w", err)
	}

	inserted := 0
	for i, car := range cars {
		if car == nil {
			continue
		}
		if car.ID != "" {
			_, err := repo.FindByID(ctx, car.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, carserrors.ErrNotFound) {
				return inserted, err
			}
		}
		car.Availability = model.AvailabilityFree
		car.ReservedFrom, car.ReservedUntil = nil, nil
		if err := repo.Create(ctx, car); err != nil {
			return inserted, fmt.Errorf("failed to seed car %d: %w", i, err)
		}
		inserted++
	}
	return inserted, nil
}
