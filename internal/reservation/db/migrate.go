package db

import (
	"context"
	"log"
	"time"

	"bus-reservation/internal/models"

	"github.com/uptrace/bun"
)

// Migrate bootstraps a development database: table creation plus a small
// seeded route/trip/seat set. Production schemas come from the SQL
// migrations directory instead.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	for _, model := range []interface{}{
		(*models.Route)(nil),
		(*models.Trip)(nil),
		(*models.Seat)(nil),
		(*models.Reservation)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("✅ reservation tables created")

	exists, err := db.NewSelect().Model((*models.Route)(nil)).Count(ctx)
	if err != nil {
		log.Fatalf("seed check failed: %v", err)
	}
	if exists > 0 {
		return
	}

	route := &models.Route{RouteID: "route-ist-ank", DepartureCity: "Istanbul", ArrivalCity: "Ankara"}
	if _, err := db.NewInsert().Model(route).Exec(ctx); err != nil {
		log.Fatalf("seed route failed: %v", err)
	}

	departure := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	trip := &models.Trip{
		TripID:         "trip-ist-ank-001",
		RouteID:        route.RouteID,
		DepartureTime:  departure,
		ArrivalTime:    departure.Add(5 * time.Hour),
		BasePrice:      100.0,
		AvailableSeats: 4,
	}
	if _, err := db.NewInsert().Model(trip).Exec(ctx); err != nil {
		log.Fatalf("seed trip failed: %v", err)
	}

	seats := []models.Seat{
		{SeatID: "seat-001-01", TripID: trip.TripID, SeatNumber: 1, SeatClass: models.SeatClassStandard, PriceMultiplier: 1.0, IsAvailable: true},
		{SeatID: "seat-001-02", TripID: trip.TripID, SeatNumber: 2, SeatClass: models.SeatClassStandard, PriceMultiplier: 1.0, IsAvailable: true},
		{SeatID: "seat-001-03", TripID: trip.TripID, SeatNumber: 3, SeatClass: models.SeatClassPremium, PriceMultiplier: 1.5, IsAvailable: true},
		{SeatID: "seat-001-04", TripID: trip.TripID, SeatNumber: 4, SeatClass: models.SeatClassPremium, PriceMultiplier: 1.5, IsAvailable: true},
	}
	if _, err := db.NewInsert().Model(&seats).Exec(ctx); err != nil {
		log.Fatalf("seed seats failed: %v", err)
	}

	log.Println("✅ sample route, trip and seats seeded")
}
