package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	carserrors "carrental/internal/cars/errors"
	"carrental/internal/cars/repository"
	"carrental/internal/events"
	"carrental/pkg/clock"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+key)
	return nil
}

func (p *recordingPublisher) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type recordingCache struct {
	mu          sync.Mutex
	listings    map[string][]*model.Car
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{listings: map[string][]*model.Car{}}
}

func (c *recordingCache) Get(_ context.Context, category string) ([]*model.Car, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cars, ok := c.listings[category]
	if !ok {
		return nil, false, nil
	}
	out := make([]*model.Car, 0, len(cars))
	for _, car := range cars {
		cp := *car
		out = append(out, &cp)
	}
	return out, true, nil
}

func (c *recordingCache) Set(_ context.Context, category string, cars []*model.Car) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]*model.Car, 0, len(cars))
	for _, car := range cars {
		cp := *car
		stored = append(stored, &cp)
	}
	c.listings[category] = stored
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, categories ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listings, "")
	for _, cat := range categories {
		delete(c.listings, cat)
		c.invalidated = append(c.invalidated, cat)
	}
	return nil
}

type fixture struct {
	repo      repository.CarRepository
	ledger    *Ledger
	clock     *clock.MockClock
	publisher *recordingPublisher
	cache     *recordingCache
}

var today = time.Date(2024, 7, 10, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T, cars ...*model.Car) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repository.NewMemoryCarRepository(),
		clock:     clock.NewMockClock(today),
		publisher: &recordingPublisher{},
		cache:     newRecordingCache(),
	}
	for _, c := range cars {
		require.NoError(t, f.repo.Create(context.Background(), c))
	}
	f.ledger = NewLedger(f.repo, f.cache, f.publisher, f.clock, logger.Discard())
	return f
}

func day(d int) time.Time {
	return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeWindow(t *testing.T) {
	kl := time.FixedZone("MYT", 8*3600)

	tests := []struct {
		name      string
		from      time.Time
		until     time.Time
		wantFrom  time.Time
		wantUntil time.Time
		wantErr   error
	}{
		{
			name:      "same day",
			from:      time.Date(2024, 7, 12, 15, 0, 0, 0, time.UTC),
			until:     time.Date(2024, 7, 12, 8, 0, 0, 0, time.UTC),
			wantFrom:  day(12),
			wantUntil: time.Date(2024, 7, 12, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:      "offset input is converted to UTC first",
			from:      time.Date(2024, 7, 13, 2, 0, 0, 0, kl),
			until:     time.Date(2024, 7, 14, 2, 0, 0, 0, kl),
			wantFrom:  day(12),
			wantUntil: time.Date(2024, 7, 13, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:    "from after until",
			from:    day(14),
			until:   day(13),
			wantErr: carserrors.ErrInvalidWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, until, err := NormalizeWindow(tt.from, tt.until)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantUntil, until)
		})
	}
}

func TestLedger_ConcurrentReservesHaveOneWinner(t *testing.T) {
	f := newFixture(t, &model.Car{ID: "car-1", Category: "SUV", Price: 100})
	ctx := context.Background()

	const n = 32
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.ledger.Reserve(ctx, "car-1", day(12), day(14))
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, carserrors.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())

	car, err := f.repo.FindByID(ctx, "car-1")
	require.NoError(t, err)
	assert.True(t, car.IsReserved())
	assert.Equal(t, day(12), *car.ReservedFrom)
	assert.Equal(t, []string{events.TypeCarReserved + ":car-1"}, f.publisher.snapshot())
	assert.Equal(t, []string{"SUV"}, f.cache.invalidated)
}

func TestLedger_ReserveErrors(t *testing.T) {
	f := newFixture(t, &model.Car{ID: "car-1"})
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "missing", day(12), day(13))
	assert.ErrorIs(t, err, carserrors.ErrNotFound)

	_, err = f.ledger.Reserve(ctx, "car-1", day(13), day(12))
	assert.ErrorIs(t, err, carserrors.ErrInvalidWindow)

	_, err = f.ledger.Reserve(ctx, " ", day(12), day(13))
	assert.ErrorIs(t, err, carserrors.ErrNotFound)

	assert.Empty(t, f.publisher.snapshot())
}

func TestLedger_ReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t, &model.Car{ID: "car-1", Category: "Sedan"})
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "car-1", day(12), day(13))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Release(ctx, "car-1"))
	require.NoError(t, f.ledger.Release(ctx, "car-1"))

	car, err := f.repo.FindByID(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityFree, car.Availability)
	assert.Nil(t, car.ReservedFrom)
	assert.Nil(t, car.ReservedUntil)

	assert.Equal(t, []string{
		events.TypeCarReserved + ":car-1",
		events.TypeCarReleased + ":car-1",
	}, f.publisher.snapshot(), "a second release publishes nothing")

	assert.ErrorIs(t, f.ledger.Release(ctx, "missing"), carserrors.ErrNotFound)

	// Free again, so it can be reserved.
	_, err = f.ledger.Reserve(ctx, "car-1", day(20), day(21))
	assert.NoError(t, err)
}

func TestLedger_SweepBoundary(t *testing.T) {
	f := newFixture(t,
		&model.Car{ID: "ends-yesterday"},
		&model.Car{ID: "ends-today"},
		&model.Car{ID: "free"},
	)
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "ends-yesterday", day(5), day(9))
	require.NoError(t, err)
	_, err = f.ledger.Reserve(ctx, "ends-today", day(5), day(10))
	require.NoError(t, err)

	endOfToday := time.Date(2024, 7, 10, 23, 59, 59, 999000000, time.UTC)

	released, err := f.ledger.SweepExpired(ctx, endOfToday)
	require.NoError(t, err)
	assert.Equal(t, []string{"ends-yesterday"}, released, "until == now is still held")

	released, err = f.ledger.SweepExpired(ctx, endOfToday.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []string{"ends-today"}, released)

	released, err = f.ledger.SweepExpired(ctx, endOfToday.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, released, "sweeping twice releases nothing new")
}

func TestLedger_SweepCarsIsScoped(t *testing.T) {
	f := newFixture(t, &model.Car{ID: "a"}, &model.Car{ID: "b"})
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := f.ledger.Reserve(ctx, id, day(1), day(2))
		require.NoError(t, err)
	}

	released, err := f.ledger.SweepCars(ctx, []string{"a"}, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, released)

	b, err := f.repo.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.True(t, b.IsReserved(), "cars outside the list are untouched")

	released, err = f.ledger.SweepCars(ctx, nil, today)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestLedger_LapsedReservationCanBeRetaken(t *testing.T) {
	f := newFixture(t, &model.Car{ID: "car-1"})
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "car-1", day(1), day(3))
	require.NoError(t, err)

	// No sweep has run, but the old window ended before today.
	car, err := f.ledger.Reserve(ctx, "car-1", day(11), day(12))
	require.NoError(t, err)
	assert.Equal(t, day(11), *car.ReservedFrom)

	_, err = f.ledger.Reserve(ctx, "car-1", day(11), day(12))
	assert.ErrorIs(t, err, carserrors.ErrConflict)
}

func TestLedger_ConcurrentSweepsAndReserves(t *testing.T) {
	f := newFixture(t, &model.Car{ID: "car-1"})
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "car-1", day(1), day(3))
	require.NoError(t, err)

	var wins atomic.Int32
	var swept atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Reserve(ctx, "car-1", day(11), day(12)); err == nil {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			released, err := f.ledger.SweepExpired(ctx, today)
			assert.NoError(t, err)
			swept.Add(int32(len(released)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.LessOrEqual(t, swept.Load(), int32(1))

	car, err := f.repo.FindByID(ctx, "car-1")
	require.NoError(t, err)
	assert.True(t, car.IsReserved())
	assert.Equal(t, day(11), *car.ReservedFrom)
}
