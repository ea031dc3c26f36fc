package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bus-reservation/internal/models"
	"bus-reservation/internal/reservation"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// SearchTrips finds trips between two cities departing on the given day.
// Only trips with remaining capacity are returned, so sold-out departures
// never show up in search.
func (d *DB) SearchTrips(ctx context.Context, departureCity, arrivalCity string, departureDate time.Time) ([]models.TripSearchResult, error) {
	dayStart := time.Date(departureDate.Year(), departureDate.Month(), departureDate.Day(), 0, 0, 0, 0, departureDate.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var rows []models.TripSearchResult
	err := d.Bun.NewSelect().
		Table("trips").
		ColumnExpr("trips.trip_id AS trip_id").
		ColumnExpr("routes.departure_city AS departure_city").
		ColumnExpr("routes.arrival_city AS arrival_city").
		ColumnExpr("trips.departure_time AS departure_time").
		ColumnExpr("trips.arrival_time AS arrival_time").
		ColumnExpr("trips.base_price AS base_price").
		ColumnExpr("trips.available_seats AS available_seats").
		Join("JOIN routes ON routes.route_id = trips.route_id").
		Where("routes.departure_city = ?", departureCity).
		Where("routes.arrival_city = ?", arrivalCity).
		Where("trips.departure_time >= ?", dayStart).
		Where("trips.departure_time < ?", dayEnd).
		Where("trips.available_seats > 0").
		OrderExpr("trips.departure_time ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetTripSeats returns the full seat map of a trip with per-seat computed
// prices. Missing trips are reservation.ErrNotFound.
func (d *DB) GetTripSeats(ctx context.Context, tripID string) ([]models.TripSeat, error) {
	var trip models.Trip
	err := d.Bun.NewSelect().
		Model(&trip).
		Where("trip_id = ?", tripID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var seats []models.Seat
	err = d.Bun.NewSelect().
		Model(&seats).
		Where("trip_id = ?", tripID).
		OrderExpr("seat_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.TripSeat, len(seats))
	for i, seat := range seats {
		result[i] = models.TripSeat{
			SeatID:          seat.SeatID,
			SeatNumber:      seat.SeatNumber,
			SeatClass:       seat.SeatClass,
			BasePrice:       trip.BasePrice,
			PriceMultiplier: seat.PriceMultiplier,
			TotalPrice:      trip.BasePrice * seat.PriceMultiplier,
			IsAvailable:     seat.IsAvailable,
		}
	}
	return result, nil
}
