package reservation

import (
	"context"
	"fmt"
	"time"

	"bus-reservation/internal/logger"
	"bus-reservation/internal/models"

	"github.com/google/uuid"
)

type Store interface {
	CreateReservation(ctx context.Context, res *models.Reservation) error
	CancelReservation(ctx context.Context, userID, reservationID string) (*models.Reservation, error)
	GetReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationsByUser(ctx context.Context, userID string) ([]models.UserReservation, error)
	ReconcileTripCapacity(ctx context.Context, tripID string) (int, error)
}

type SeatLock interface {
	LockSeat(ctx context.Context, tripID, seatID, token string) (bool, error)
	UnlockSeat(ctx context.Context, tripID, seatID, token string) error
}

type Publisher interface {
	PublishReservationCreated(res models.Reservation) error
	PublishReservationCancelled(res models.Reservation) error
	PublishSeatStatus(tripID string, seatIDs []string, status string) error
}

type QRGenerator interface {
	GenerateConfirmationQR(res models.Reservation) ([]byte, error)
}

// Service is the reservation engine. Every booking and cancellation is one
// atomic transition in the Store; the Redis seat lock in front of it bounds
// the wait two racing bookings for the same seat can impose on each other.
type Service struct {
	Store  Store
	Lock   SeatLock
	Kafka  Publisher
	QR     QRGenerator
	Logger *logger.Logger
}

func NewService(store Store, lock SeatLock, kafka Publisher, qr QRGenerator, log *logger.Logger) *Service {
	return &Service{Store: store, Lock: lock, Kafka: kafka, QR: qr, Logger: log}
}

// CreateReservation books one seat on one trip for userID. Exactly one of any
// number of concurrent callers for the same seat succeeds; the rest get
// ErrSeatLocked or ErrSeatUnavailable. On any failure no partial state is
// left behind: the seat stays available, no ledger row exists and the trip
// counter is unchanged.
func (s *Service) CreateReservation(ctx context.Context, userID string, req models.CreateReservationRequest) (*models.ReservationConfirmation, error) {
	reservationID := uuid.NewString()
	s.Logger.LogReservation("CREATE", reservationID, fmt.Sprintf("user=%s trip=%s seat=%s", userID, req.TripID, req.SeatID))

	// Step 1: take the per-seat lock. Callers for other seats are unaffected.
	ok, err := s.Lock.LockSeat(ctx, req.TripID, req.SeatID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("seat lock error: %w", err)
	}
	if !ok {
		return nil, ErrSeatLocked
	}
	defer func() {
		if err := s.Lock.UnlockSeat(ctx, req.TripID, req.SeatID, reservationID); err != nil {
			s.Logger.Error("RESERVATION", fmt.Sprintf("failed to release seat lock %s/%s: %v", req.TripID, req.SeatID, err))
		}
	}()

	res := models.Reservation{
		ReservationID:       reservationID,
		UserID:              userID,
		TripID:              req.TripID,
		SeatID:              req.SeatID,
		PassengerName:       req.PassengerName,
		PassengerNationalID: req.PassengerNationalID,
		PassengerPhone:      req.PassengerPhone,
		PaymentMethod:       req.PaymentMethod,
		Status:              models.ReservationStatusActive,
		ReservationDate:     time.Now(),
	}

	if s.QR != nil {
		qr, err := s.QR.GenerateConfirmationQR(res)
		if err != nil {
			// The QR is a convenience artifact, not part of the booking contract.
			s.Logger.Warn("RESERVATION", fmt.Sprintf("QR generation failed for %s: %v", reservationID, err))
		} else {
			res.QRCode = qr
		}
	}

	// Step 2: the atomic transition. The store claims the seat, snapshots the
	// price, inserts the ledger row and decrements the trip counter in one
	// transaction. TotalAmount is filled in from the price at this instant.
	if err := s.Store.CreateReservation(ctx, &res); err != nil {
		return nil, err
	}

	// Step 3: lifecycle events, best-effort.
	if err := s.Kafka.PublishReservationCreated(res); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish reservation created %s: %v", reservationID, err))
	}
	if err := s.Kafka.PublishSeatStatus(res.TripID, []string{res.SeatID}, models.SeatStatusReserved); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish seat status for %s: %v", res.SeatID, err))
	}

	s.Logger.LogReservation("CREATED", reservationID, fmt.Sprintf("amount=%.2f", res.TotalAmount))
	return &models.ReservationConfirmation{
		ReservationID: res.ReservationID,
		TotalAmount:   res.TotalAmount,
	}, nil
}

// CancelReservation flips an active reservation owned by userID to cancelled,
// frees its seat and gives the trip counter back its unit, atomically. A
// reservation that does not exist or belongs to someone else is ErrNotFound;
// cancelling twice reports ErrAlreadyCancelled without touching state.
func (s *Service) CancelReservation(ctx context.Context, userID, reservationID string) error {
	s.Logger.LogReservation("CANCEL", reservationID, fmt.Sprintf("user=%s", userID))

	res, err := s.Store.CancelReservation(ctx, userID, reservationID)
	if err != nil {
		return err
	}

	if err := s.Kafka.PublishReservationCancelled(*res); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish reservation cancelled %s: %v", reservationID, err))
	}
	if err := s.Kafka.PublishSeatStatus(res.TripID, []string{res.SeatID}, models.SeatStatusAvailable); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish seat status for %s: %v", res.SeatID, err))
	}

	s.Logger.LogReservation("CANCELLED", reservationID, "seat released")
	return nil
}

func (s *Service) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return s.Store.GetReservationByID(ctx, id)
}

func (s *Service) GetUserReservations(ctx context.Context, userID string) ([]models.UserReservation, error) {
	return s.Store.GetReservationsByUser(ctx, userID)
}

// ReconcileTrip recounts a trip's free seats and repairs the cached counter.
// Nonzero drift means something mutated seat availability outside the engine.
func (s *Service) ReconcileTrip(ctx context.Context, tripID string) (int, error) {
	drift, err := s.Store.ReconcileTripCapacity(ctx, tripID)
	if err != nil {
		return 0, err
	}
	if drift != 0 {
		s.Logger.Error("RESERVATION", fmt.Sprintf("capacity drift of %d corrected on trip %s", drift, tripID))
	}
	return drift, nil
}
