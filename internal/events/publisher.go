// README: Domain event publishing (Kafka when configured, no-op otherwise).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	ReservationCreated   Type = "reservation.created"
	ReservationExpired   Type = "reservation.expired"
	BedStatusChanged     Type = "bed.status_changed"
	FacilityAvailability Type = "facility.availability"
	FacilityCreated      Type = "facility.created"
	FacilityUpdated      Type = "facility.updated"
)

const headerEventType = "event-type"

// Event is one domain notification. Key selects the partition so events for
// the same bed or facility stay ordered.
type Event struct {
	Type Type      `json:"type"`
	Key  string    `json:"key"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.Key == "" {
		return fmt.Errorf("event %s: empty key", e.Type)
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.Key),
		Value:   value,
		Time:    e.At,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(e.Type)}},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Emit publishes e and logs, rather than returns, any failure. Events are
// notifications; losing one must never fail the operation that produced it.
func Emit(ctx context.Context, p Publisher, log zerolog.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event", string(e.Type)).Str("key", e.Key).Msg("publish event failed")
	}
}
