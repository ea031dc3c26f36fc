package trips

import (
	"context"
	"fmt"
	"time"

	"bus-reservation/internal/logger"
	"bus-reservation/internal/models"
)

type DBLayer interface {
	SearchTrips(ctx context.Context, departureCity, arrivalCity string, departureDate time.Time) ([]models.TripSearchResult, error)
	GetTripSeats(ctx context.Context, tripID string) ([]models.TripSeat, error)
}

// LockChecker reports whether a booking for a seat is currently in flight,
// so the seat map can show it as taken before the transaction commits.
type LockChecker interface {
	IsSeatLocked(ctx context.Context, tripID, seatID string) (bool, error)
}

type TripService struct {
	DB     DBLayer
	Locks  LockChecker
	Logger *logger.Logger
}

func NewTripService(db DBLayer, locks LockChecker, log *logger.Logger) *TripService {
	return &TripService{DB: db, Locks: locks, Logger: log}
}

func (s *TripService) SearchTrips(ctx context.Context, departureCity, arrivalCity string, departureDate time.Time) ([]models.TripSearchResult, error) {
	return s.DB.SearchTrips(ctx, departureCity, arrivalCity, departureDate)
}

// GetTripSeats returns the seat map with in-flight bookings overlaid as
// unavailable. A lock-check failure downgrades to the plain DB view rather
// than failing the listing.
func (s *TripService) GetTripSeats(ctx context.Context, tripID string) ([]models.TripSeat, error) {
	seats, err := s.DB.GetTripSeats(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if s.Locks == nil {
		return seats, nil
	}

	// Overlay only after every check succeeds, so a mid-loop failure
	// returns the untouched DB view instead of a half-overlaid one.
	var lockedIdx []int
	for i, seat := range seats {
		if !seat.IsAvailable {
			continue
		}
		locked, err := s.Locks.IsSeatLocked(ctx, tripID, seat.SeatID)
		if err != nil {
			s.Logger.Warn("TRIPS", fmt.Sprintf("seat lock check failed for %s/%s: %v", tripID, seat.SeatID, err))
			return seats, nil
		}
		if locked {
			lockedIdx = append(lockedIdx, i)
		}
	}
	for _, i := range lockedIdx {
		seats[i].IsAvailable = false
	}
	return seats, nil
}
