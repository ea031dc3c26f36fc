package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Route struct {
	bun.BaseModel `bun:"table:routes"`

	RouteID       string `bun:"route_id,pk"`
	DepartureCity string `bun:"departure_city,notnull"`
	ArrivalCity   string `bun:"arrival_city,notnull"`
}

type Trip struct {
	bun.BaseModel `bun:"table:trips"`

	TripID         string    `bun:"trip_id,pk"`
	RouteID        string    `bun:"route_id,notnull"`
	DepartureTime  time.Time `bun:"departure_time,notnull"`
	ArrivalTime    time.Time `bun:"arrival_time,notnull"`
	BasePrice      float64   `bun:"base_price,notnull"`
	AvailableSeats int       `bun:"available_seats,notnull"`
}

// TripSearchResult is the row shape returned by trip search: a trip joined
// with its route so the client can render city pair and remaining capacity.
type TripSearchResult struct {
	TripID         string    `json:"trip_id"`
	DepartureCity  string    `json:"departure_city"`
	ArrivalCity    string    `json:"arrival_city"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	BasePrice      float64   `json:"base_price"`
	AvailableSeats int       `json:"available_seats"`
}
