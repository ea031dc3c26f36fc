package models

import (
	"github.com/uptrace/bun"
)

const (
	SeatClassStandard = "standard"
	SeatClassPremium  = "premium"
)

type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	SeatID          string  `bun:"seat_id,pk"`
	TripID          string  `bun:"trip_id,notnull"`
	SeatNumber      int     `bun:"seat_number,notnull"`
	SeatClass       string  `bun:"seat_class,notnull"`
	PriceMultiplier float64 `bun:"price_multiplier,notnull"`
	IsAvailable     bool    `bun:"is_available,notnull"`
}

// TripSeat is the seat-map row returned to clients picking a seat: the seat
// plus its trip-level base price and the computed per-seat total.
type TripSeat struct {
	SeatID          string  `json:"seat_id"`
	SeatNumber      int     `json:"seat_number"`
	SeatClass       string  `json:"seat_class"`
	BasePrice       float64 `json:"base_price"`
	PriceMultiplier float64 `json:"price_multiplier"`
	TotalPrice      float64 `json:"total_price"`
	IsAvailable     bool    `json:"is_available"`
}
