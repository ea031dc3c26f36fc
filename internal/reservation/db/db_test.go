package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"bus-reservation/internal/models"
	"bus-reservation/internal/reservation"
	"bus-reservation/internal/reservation/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing. A single connection is
	// enforced so every goroutine shares the same in-memory database.
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Route)(nil),
		(*models.Trip)(nil),
		(*models.Seat)(nil),
		(*models.Reservation)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

// seedTrip inserts one route, one trip and seatCount standard seats plus one
// premium seat. The premium seat is the last one.
func seedTrip(t *testing.T, bunDB *bun.DB, tripID string, basePrice float64, seatCount int) []models.Seat {
	ctx := context.Background()

	route := models.Route{RouteID: "route-" + tripID, DepartureCity: "Istanbul", ArrivalCity: "Ankara"}
	_, err := bunDB.NewInsert().Model(&route).Exec(ctx)
	require.NoError(t, err)

	departure := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	trip := models.Trip{
		TripID:         tripID,
		RouteID:        route.RouteID,
		DepartureTime:  departure,
		ArrivalTime:    departure.Add(5 * time.Hour),
		BasePrice:      basePrice,
		AvailableSeats: seatCount,
	}
	_, err = bunDB.NewInsert().Model(&trip).Exec(ctx)
	require.NoError(t, err)

	seats := make([]models.Seat, seatCount)
	for i := range seats {
		seats[i] = models.Seat{
			SeatID:          tripID + "-seat-" + string(rune('a'+i)),
			TripID:          tripID,
			SeatNumber:      i + 1,
			SeatClass:       models.SeatClassStandard,
			PriceMultiplier: 1.0,
			IsAvailable:     true,
		}
	}
	seats[seatCount-1].SeatClass = models.SeatClassPremium
	seats[seatCount-1].PriceMultiplier = 1.5

	_, err = bunDB.NewInsert().Model(&seats).Exec(ctx)
	require.NoError(t, err)

	return seats
}

func newReservation(tripID, seatID string) *models.Reservation {
	return &models.Reservation{
		ReservationID:       uuid.NewString(),
		UserID:              "user123",
		TripID:              tripID,
		SeatID:              seatID,
		PassengerName:       "Ali Veli",
		PassengerNationalID: "12345678901",
		PassengerPhone:      "+905551112233",
		PaymentMethod:       "credit_card",
		Status:              models.ReservationStatusActive,
		ReservationDate:     time.Now(),
	}
}

func tripCounter(t *testing.T, bunDB *bun.DB, tripID string) int {
	var trip models.Trip
	err := bunDB.NewSelect().Model(&trip).Where("trip_id = ?", tripID).Scan(context.Background())
	require.NoError(t, err)
	return trip.AvailableSeats
}

func availableSeatCount(t *testing.T, bunDB *bun.DB, tripID string) int {
	count, err := bunDB.NewSelect().
		Model((*models.Seat)(nil)).
		Where("trip_id = ?", tripID).
		Where("is_available = ?", true).
		Count(context.Background())
	require.NoError(t, err)
	return count
}

func reservationCount(t *testing.T, bunDB *bun.DB, status string) int {
	q := bunDB.NewSelect().Model((*models.Reservation)(nil))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	count, err := q.Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestCreateReservation_ComputesAmountAndClaimsSeat(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 4)
	premium := seats[len(seats)-1]

	res := newReservation("trip1", premium.SeatID)
	err := store.CreateReservation(context.Background(), res)
	require.NoError(t, err)

	// 100 base x 1.5 premium multiplier
	assert.Equal(t, 150.0, res.TotalAmount)
	assert.Equal(t, 3, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 3, availableSeatCount(t, bunDB, "trip1"))
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusActive))

	stored, err := store.GetReservationByID(context.Background(), res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusActive, stored.Status)
	assert.Equal(t, 150.0, stored.TotalAmount)
}

func TestCreateReservation_SeatAlreadyTaken(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 2)

	err := store.CreateReservation(context.Background(), newReservation("trip1", seats[0].SeatID))
	require.NoError(t, err)

	err = store.CreateReservation(context.Background(), newReservation("trip1", seats[0].SeatID))
	assert.ErrorIs(t, err, reservation.ErrSeatUnavailable)

	// The failed attempt left nothing behind.
	assert.Equal(t, 1, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 1, reservationCount(t, bunDB, ""))
}

func TestCreateReservation_UnknownSeat(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seedTrip(t, bunDB, "trip1", 100.0, 2)

	err := store.CreateReservation(context.Background(), newReservation("trip1", "no-such-seat"))
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	err = store.CreateReservation(context.Background(), newReservation("no-such-trip", "trip1-seat-a"))
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	// Zero side effects.
	assert.Equal(t, 2, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 2, availableSeatCount(t, bunDB, "trip1"))
	assert.Equal(t, 0, reservationCount(t, bunDB, ""))
}

func TestCreateReservation_CounterAlreadyZeroRollsBack(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 2)

	// Corrupt the counter the way an out-of-band mutation would.
	_, err := bunDB.NewUpdate().
		Model((*models.Trip)(nil)).
		Set("available_seats = ?", 0).
		Where("trip_id = ?", "trip1").
		Exec(context.Background())
	require.NoError(t, err)

	err = store.CreateReservation(context.Background(), newReservation("trip1", seats[0].SeatID))
	assert.ErrorIs(t, err, reservation.ErrCapacityInconsistent)

	// The whole transition rolled back: the seat is still available and no
	// ledger row exists.
	assert.Equal(t, 2, availableSeatCount(t, bunDB, "trip1"))
	assert.Equal(t, 0, reservationCount(t, bunDB, ""))
}

func TestCreateReservation_ConcurrentRacersOneWins(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 3)
	contested := seats[0].SeatID

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreateReservation(context.Background(), newReservation("trip1", contested))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, reservation.ErrSeatUnavailable)
		}
	}

	assert.Equal(t, 1, successes, "exactly one racer must win the seat")
	assert.Equal(t, 2, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 2, availableSeatCount(t, bunDB, "trip1"))
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusActive))
}

func TestCancelReservation_FreesSeatAndCounter(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 1)

	res := newReservation("trip1", seats[0].SeatID)
	require.NoError(t, store.CreateReservation(context.Background(), res))
	require.Equal(t, 0, tripCounter(t, bunDB, "trip1"))

	cancelled, err := store.CancelReservation(context.Background(), res.UserID, res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
	assert.Equal(t, seats[0].SeatID, cancelled.SeatID)

	assert.Equal(t, 1, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 1, availableSeatCount(t, bunDB, "trip1"))
	// The ledger row survives cancellation.
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusCancelled))
	assert.Equal(t, 0, reservationCount(t, bunDB, models.ReservationStatusActive))
}

func TestCancelReservation_TwiceReportsAlreadyCancelled(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 1)

	res := newReservation("trip1", seats[0].SeatID)
	require.NoError(t, store.CreateReservation(context.Background(), res))

	_, err := store.CancelReservation(context.Background(), res.UserID, res.ReservationID)
	require.NoError(t, err)

	_, err = store.CancelReservation(context.Background(), res.UserID, res.ReservationID)
	assert.ErrorIs(t, err, reservation.ErrAlreadyCancelled)

	// The second call changed nothing.
	assert.Equal(t, 1, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 1, availableSeatCount(t, bunDB, "trip1"))
}

func TestCancelReservation_OwnershipEnforced(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 1)

	res := newReservation("trip1", seats[0].SeatID)
	require.NoError(t, store.CreateReservation(context.Background(), res))

	_, err := store.CancelReservation(context.Background(), "someone-else", res.ReservationID)
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	_, err = store.CancelReservation(context.Background(), res.UserID, "no-such-reservation")
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	// Still booked.
	assert.Equal(t, 0, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusActive))
}

func TestCancelThenRebookSameSeat(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 1)
	seatID := seats[0].SeatID

	first := newReservation("trip1", seatID)
	require.NoError(t, store.CreateReservation(context.Background(), first))

	_, err := store.CancelReservation(context.Background(), first.UserID, first.ReservationID)
	require.NoError(t, err)

	second := newReservation("trip1", seatID)
	require.NoError(t, store.CreateReservation(context.Background(), second))

	assert.Equal(t, 0, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusActive))
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusCancelled))
}

func TestCancelReservation_ConcurrentCancelsOneWins(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 2)

	res := newReservation("trip1", seats[0].SeatID)
	require.NoError(t, store.CreateReservation(context.Background(), res))
	require.Equal(t, 1, tripCounter(t, bunDB, "trip1"))

	const racers = 8
	results := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CancelReservation(context.Background(), res.UserID, res.ReservationID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, alreadyCancelled int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, reservation.ErrAlreadyCancelled):
			alreadyCancelled++
		default:
			t.Fatalf("unexpected cancel error: %v", err)
		}
	}

	// Exactly one cancel flips the row; the counter moves exactly once.
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, alreadyCancelled)
	assert.Equal(t, 2, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 2, availableSeatCount(t, bunDB, "trip1"))
}

func TestCancelReservation_StaleCancelLeavesRebookedSeatAlone(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 1)
	seatID := seats[0].SeatID

	first := newReservation("trip1", seatID)
	require.NoError(t, store.CreateReservation(context.Background(), first))
	_, err := store.CancelReservation(context.Background(), first.UserID, first.ReservationID)
	require.NoError(t, err)

	second := newReservation("trip1", seatID)
	require.NoError(t, store.CreateReservation(context.Background(), second))
	require.Equal(t, 0, tripCounter(t, bunDB, "trip1"))

	// A late cancel of the old reservation must not free the seat now held
	// by the new one, nor bump the counter.
	_, err = store.CancelReservation(context.Background(), first.UserID, first.ReservationID)
	assert.ErrorIs(t, err, reservation.ErrAlreadyCancelled)

	assert.Equal(t, 0, tripCounter(t, bunDB, "trip1"))
	assert.Equal(t, 0, availableSeatCount(t, bunDB, "trip1"))
	assert.Equal(t, 1, reservationCount(t, bunDB, models.ReservationStatusActive))
}

func TestTotalAmountImmutableAfterPriceChange(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 2)
	premium := seats[len(seats)-1]

	res := newReservation("trip1", premium.SeatID)
	require.NoError(t, store.CreateReservation(context.Background(), res))
	require.Equal(t, 150.0, res.TotalAmount)

	// Reprice the trip after booking.
	_, err := bunDB.NewUpdate().
		Model((*models.Trip)(nil)).
		Set("base_price = ?", 200.0).
		Where("trip_id = ?", "trip1").
		Exec(context.Background())
	require.NoError(t, err)

	stored, err := store.GetReservationByID(context.Background(), res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stored.TotalAmount)
}

func TestCounterNeverDriftsAcrossSequences(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 4)
	ctx := context.Background()

	r1 := newReservation("trip1", seats[0].SeatID)
	r2 := newReservation("trip1", seats[1].SeatID)
	r3 := newReservation("trip1", seats[2].SeatID)

	require.NoError(t, store.CreateReservation(ctx, r1))
	require.NoError(t, store.CreateReservation(ctx, r2))
	_, err := store.CancelReservation(ctx, r1.UserID, r1.ReservationID)
	require.NoError(t, err)
	require.NoError(t, store.CreateReservation(ctx, r3))

	assert.Equal(t, availableSeatCount(t, bunDB, "trip1"), tripCounter(t, bunDB, "trip1"))

	drift, err := store.ReconcileTripCapacity(ctx, "trip1")
	require.NoError(t, err)
	assert.Equal(t, 0, drift)
}

func TestReconcileRepairsInjectedDrift(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seedTrip(t, bunDB, "trip1", 100.0, 3)

	// Simulate an administrative override that bypassed the engine.
	_, err := bunDB.NewUpdate().
		Model((*models.Seat)(nil)).
		Set("is_available = ?", false).
		Where("seat_id = ?", "trip1-seat-a").
		Exec(context.Background())
	require.NoError(t, err)

	drift, err := store.ReconcileTripCapacity(context.Background(), "trip1")
	require.NoError(t, err)
	assert.Equal(t, 1, drift)
	assert.Equal(t, 2, tripCounter(t, bunDB, "trip1"))

	_, err = store.ReconcileTripCapacity(context.Background(), "no-such-trip")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestGetReservationsByUser(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	seats := seedTrip(t, bunDB, "trip1", 100.0, 3)
	ctx := context.Background()

	first := newReservation("trip1", seats[0].SeatID)
	first.ReservationDate = time.Now().Add(-1 * time.Hour)
	require.NoError(t, store.CreateReservation(ctx, first))

	second := newReservation("trip1", seats[1].SeatID)
	require.NoError(t, store.CreateReservation(ctx, second))

	other := newReservation("trip1", seats[2].SeatID)
	other.UserID = "someone-else"
	require.NoError(t, store.CreateReservation(ctx, other))

	rows, err := store.GetReservationsByUser(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Newest first, joined with route and seat details.
	assert.Equal(t, second.ReservationID, rows[0].ReservationID)
	assert.Equal(t, first.ReservationID, rows[1].ReservationID)
	assert.Equal(t, "Istanbul", rows[0].DepartureCity)
	assert.Equal(t, "Ankara", rows[0].ArrivalCity)
	assert.Equal(t, 2, rows[0].SeatNumber)
	assert.Equal(t, models.ReservationStatusActive, rows[0].Status)
}
