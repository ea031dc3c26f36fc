package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// SeatLock serializes bookings per seat without blocking unrelated seats:
// the lock key is scoped to one (trip, seat) pair. Acquisition is a single
// SetNX, so a contended caller fails immediately instead of queueing, and
// the engine reports that as a busy condition without ever waiting unbounded.
type SeatLock struct {
	Client *redis.Client
	Logger *log.Logger
	TTL    time.Duration
}

func NewSeatLock(client *redis.Client) *SeatLock {
	return &SeatLock{
		Client: client,
		Logger: log.Default(),
	}
}

// lockTTL returns the configured lock TTL. The TTL is a crash guard: a
// process that dies mid-booking must not leave its seat wedged forever.
func (s *SeatLock) lockTTL() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}

	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("SEAT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		s.Logger.Println("REDIS: invalid SEAT_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

func seatKey(tripID, seatID string) string {
	return fmt.Sprintf("seat_lock:%s:%s", tripID, seatID)
}

// LockSeat attempts to take the seat lock for the given owner token. It
// returns false when another booking holds the lock.
func (s *SeatLock) LockSeat(ctx context.Context, tripID, seatID, token string) (bool, error) {
	ok, err := s.Client.SetNX(ctx, seatKey(tripID, seatID), token, s.lockTTL()).Result()
	return ok, err
}

// UnlockSeat releases the seat lock if the caller still owns it. A lock that
// expired or was taken over by another owner is left alone.
func (s *SeatLock) UnlockSeat(ctx context.Context, tripID, seatID, token string) error {
	key := seatKey(tripID, seatID)
	val, err := s.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := s.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsSeatLocked reports whether any booking currently holds the seat lock,
// without taking it. Used by the seat-map listing to mark in-flight seats.
func (s *SeatLock) IsSeatLocked(ctx context.Context, tripID, seatID string) (bool, error) {
	_, err := s.Client.Get(ctx, seatKey(tripID, seatID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
