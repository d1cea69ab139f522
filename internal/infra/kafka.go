// README: Kafka writer initialization for domain events.
package infra

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"lifeline/internal/config"
)

func NewKafkaWriter(cfg config.KafkaConfig, log zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error().Str("component", "kafka").Msgf(msg, args...)
		}),
	}
}
