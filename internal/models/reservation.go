package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ReservationStatusActive    = "active"
	ReservationStatusCancelled = "cancelled"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ReservationID       string    `bun:"reservation_id,pk"`
	UserID              string    `bun:"user_id,notnull"`
	TripID              string    `bun:"trip_id,notnull"`
	SeatID              string    `bun:"seat_id,notnull"`
	PassengerName       string    `bun:"passenger_name,notnull"`
	PassengerNationalID string    `bun:"passenger_national_id,notnull"`
	PassengerPhone      string    `bun:"passenger_phone,notnull"`
	PaymentMethod       string    `bun:"payment_method,notnull"`
	TotalAmount         float64   `bun:"total_amount,notnull"`
	Status              string    `bun:"status,notnull"`
	QRCode              []byte    `bun:"qr_code"`
	ReservationDate     time.Time `bun:"reservation_date,notnull"`
}

type CreateReservationRequest struct {
	TripID              string `json:"trip_id"`
	SeatID              string `json:"seat_id"`
	PassengerName       string `json:"passenger_name"`
	PassengerNationalID string `json:"passenger_national_id"`
	PassengerPhone      string `json:"passenger_phone"`
	PaymentMethod       string `json:"payment_method"`
}

type ReservationConfirmation struct {
	ReservationID string  `json:"reservation_id"`
	TotalAmount   float64 `json:"total_amount"`
}

// UserReservation is the "my reservations" row: the reservation joined with
// trip, route and seat details, the shape the listing endpoint returns.
type UserReservation struct {
	ReservationID   string    `json:"reservation_id"`
	TripID          string    `json:"trip_id"`
	DepartureCity   string    `json:"departure_city"`
	ArrivalCity     string    `json:"arrival_city"`
	DepartureTime   time.Time `json:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time"`
	SeatNumber      int       `json:"seat_number"`
	PassengerName   string    `json:"passenger_name"`
	TotalAmount     float64   `json:"total_amount"`
	Status          string    `json:"status"`
	ReservationDate time.Time `json:"reservation_date"`
}
