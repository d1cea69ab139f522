package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Publish(context.Background(), Event{
		Type: ReservationCreated,
		Key:  "bed-1",
		At:   at,
		Data: map[string]string{"reservation_id": "r-1"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "bed-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, string(ReservationCreated), string(msg.Headers[0].Value))

	var decoded struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "reservation.created", decoded.Type)
	assert.Equal(t, "r-1", decoded.Data["reservation_id"])
}

func TestKafkaPublisher_RejectsEmptyKey(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}
	err := p.Publish(context.Background(), Event{Type: BedStatusChanged})
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestEmit_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}

	Emit(context.Background(), p, log, Event{Type: ReservationExpired, Key: "bed-9"})

	assert.Contains(t, buf.String(), "publish event failed")
	assert.Contains(t, buf.String(), "broker down")
}

func TestEmit_NilPublisher(t *testing.T) {
	Emit(context.Background(), nil, zerolog.Nop(), Event{Type: ReservationExpired, Key: "bed-9"})
}
