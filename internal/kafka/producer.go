package kafka

import (
	"context"
	"encoding/json"
	"time"

	"bus-reservation/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	TopicReservationCreated   = "busline.reservations.created"
	TopicReservationCancelled = "busline.reservations.cancelled"
	TopicSeatStatus           = "busline.seats.status"
)

// Topics lists every topic the service publishes to, for startup bootstrap.
var Topics = []string{
	TopicReservationCreated,
	TopicReservationCancelled,
	TopicSeatStatus,
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes one message to the given topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishReservationCreated streams the booking event to Kafka.
func (p *Producer) PublishReservationCreated(res models.Reservation) error {
	return p.publishReservationEvent(TopicReservationCreated, res)
}

// PublishReservationCancelled streams the cancellation event to Kafka.
func (p *Producer) PublishReservationCancelled(res models.Reservation) error {
	return p.publishReservationEvent(TopicReservationCancelled, res)
}

func (p *Producer) publishReservationEvent(topic string, res models.Reservation) error {
	event := models.ReservationEvent{
		ReservationID: res.ReservationID,
		UserID:        res.UserID,
		TripID:        res.TripID,
		SeatID:        res.SeatID,
		TotalAmount:   res.TotalAmount,
		Status:        res.Status,
		OccurredAt:    time.Now(),
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Publish(topic, res.ReservationID, msgBytes)
}

// PublishSeatStatus notifies seat-map consumers that seats changed state.
func (p *Producer) PublishSeatStatus(tripID string, seatIDs []string, status string) error {
	event := models.SeatStatusChangeEvent{
		TripID:  tripID,
		SeatIDs: seatIDs,
		Status:  status,
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Publish(TopicSeatStatus, tripID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
