package models

import "time"

const (
	SeatStatusAvailable = "AVAILABLE"
	SeatStatusReserved  = "RESERVED"
)

// SeatStatusChangeEvent is published whenever a seat flips between reserved
// and available, so seat-map consumers can refresh their views.
type SeatStatusChangeEvent struct {
	TripID  string   `json:"trip_id"`
	SeatIDs []string `json:"seat_ids"`
	Status  string   `json:"status"`
}

// ReservationEvent is the payload for the reservation lifecycle topics.
type ReservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	TripID        string    `json:"trip_id"`
	SeatID        string    `json:"seat_id"`
	TotalAmount   float64   `json:"total_amount"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}
