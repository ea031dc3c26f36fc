package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bus-reservation/internal/models"
	"bus-reservation/internal/reservation"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- RESERVATIONS ----------------

// CreateReservation performs the booking transition as one transaction:
// claim the seat, snapshot the price into res.TotalAmount, insert the ledger
// row, decrement the trip counter. The seat claim is a compare-and-swap
// keyed on is_available = true, so of two transactions racing for the same
// seat exactly one sees a row flip and the other gets ErrSeatUnavailable.
func (d *DB) CreateReservation(ctx context.Context, res *models.Reservation) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var seat models.Seat
		err := tx.NewSelect().
			Model(&seat).
			Where("trip_id = ?", res.TripID).
			Where("seat_id = ?", res.SeatID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load seat %s: %w", res.SeatID, err)
		}

		claimed, err := tx.NewUpdate().
			Model((*models.Seat)(nil)).
			Set("is_available = ?", false).
			Where("seat_id = ?", res.SeatID).
			Where("trip_id = ?", res.TripID).
			Where("is_available = ?", true).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("claim seat %s: %w", res.SeatID, err)
		}
		if rows, _ := claimed.RowsAffected(); rows == 0 {
			return reservation.ErrSeatUnavailable
		}

		var trip models.Trip
		err = tx.NewSelect().
			Model(&trip).
			Where("trip_id = ?", res.TripID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load trip %s: %w", res.TripID, err)
		}

		// Price snapshot. Later price changes never touch this reservation.
		res.TotalAmount = trip.BasePrice * seat.PriceMultiplier

		if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
			return fmt.Errorf("insert reservation %s: %w", res.ReservationID, err)
		}

		decremented, err := tx.NewUpdate().
			Model((*models.Trip)(nil)).
			Set("available_seats = available_seats - 1").
			Where("trip_id = ?", res.TripID).
			Where("available_seats > 0").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("decrement trip %s capacity: %w", res.TripID, err)
		}
		if rows, _ := decremented.RowsAffected(); rows == 0 {
			// The seat row said available but the counter was already zero.
			// Invariant violation upstream; abort the whole booking.
			return reservation.ErrCapacityInconsistent
		}

		return nil
	})
}

// CancelReservation flips the reservation to cancelled, frees its seat and
// re-increments the trip counter, all in one transaction. Ownership is
// checked here: a reservation belonging to another user is ErrNotFound.
func (d *DB) CancelReservation(ctx context.Context, userID, reservationID string) (*models.Reservation, error) {
	var out models.Reservation
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&out).
			Where("reservation_id = ?", reservationID).
			Where("user_id = ?", userID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load reservation %s: %w", reservationID, err)
		}

		// The status flip is the arbiter, same compare-and-swap shape as the
		// seat claim. The snapshot above can be stale under read committed,
		// so of two racing cancels only one flips the row; the loser sees
		// zero rows and must not free the seat or touch the counter.
		flipped, err := tx.NewUpdate().
			Model((*models.Reservation)(nil)).
			Set("status = ?", models.ReservationStatusCancelled).
			Where("reservation_id = ?", reservationID).
			Where("status = ?", models.ReservationStatusActive).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("cancel reservation %s: %w", reservationID, err)
		}
		if rows, _ := flipped.RowsAffected(); rows == 0 {
			return reservation.ErrAlreadyCancelled
		}

		released, err := tx.NewUpdate().
			Model((*models.Seat)(nil)).
			Set("is_available = ?", true).
			Where("seat_id = ?", out.SeatID).
			Where("is_available = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("release seat %s: %w", out.SeatID, err)
		}
		if rows, _ := released.RowsAffected(); rows == 0 {
			// An active reservation always holds its seat. A seat that is
			// somehow already free means the counter can no longer be
			// trusted; abort rather than increment it past the truth.
			return reservation.ErrCapacityInconsistent
		}

		if _, err := tx.NewUpdate().
			Model((*models.Trip)(nil)).
			Set("available_seats = available_seats + 1").
			Where("trip_id = ?", out.TripID).
			Exec(ctx); err != nil {
			return fmt.Errorf("increment trip %s capacity: %w", out.TripID, err)
		}

		out.Status = models.ReservationStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReservationByID fetches one ledger row.
func (d *DB) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	err := d.Bun.NewSelect().
		Model(&res).
		Where("reservation_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetReservationsByUser returns the user's reservations joined with trip,
// route and seat details, newest first.
func (d *DB) GetReservationsByUser(ctx context.Context, userID string) ([]models.UserReservation, error) {
	var rows []models.UserReservation
	err := d.Bun.NewSelect().
		Table("reservations").
		ColumnExpr("reservations.reservation_id AS reservation_id").
		ColumnExpr("reservations.trip_id AS trip_id").
		ColumnExpr("routes.departure_city AS departure_city").
		ColumnExpr("routes.arrival_city AS arrival_city").
		ColumnExpr("trips.departure_time AS departure_time").
		ColumnExpr("trips.arrival_time AS arrival_time").
		ColumnExpr("seats.seat_number AS seat_number").
		ColumnExpr("reservations.passenger_name AS passenger_name").
		ColumnExpr("reservations.total_amount AS total_amount").
		ColumnExpr("reservations.status AS status").
		ColumnExpr("reservations.reservation_date AS reservation_date").
		Join("JOIN trips ON trips.trip_id = reservations.trip_id").
		Join("JOIN routes ON routes.route_id = trips.route_id").
		Join("JOIN seats ON seats.seat_id = reservations.seat_id").
		Where("reservations.user_id = ?", userID).
		OrderExpr("reservations.reservation_date DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ---------------- RECONCILIATION ----------------

// ReconcileTripCapacity recounts available seats for a trip and rewrites the
// cached counter when it has drifted. Returns the drift that was corrected
// (zero when the counter was already right). The engine itself never lets the
// counter diverge; this exists for availability mutations made outside it.
func (d *DB) ReconcileTripCapacity(ctx context.Context, tripID string) (int, error) {
	var drift int
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		actual, err := tx.NewSelect().
			Model((*models.Seat)(nil)).
			Where("trip_id = ?", tripID).
			Where("is_available = ?", true).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count seats for trip %s: %w", tripID, err)
		}

		var trip models.Trip
		err = tx.NewSelect().
			Model(&trip).
			Where("trip_id = ?", tripID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load trip %s: %w", tripID, err)
		}

		drift = trip.AvailableSeats - actual
		if drift == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.Trip)(nil)).
			Set("available_seats = ?", actual).
			Where("trip_id = ?", tripID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("rewrite trip %s capacity: %w", tripID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return drift, nil
}
