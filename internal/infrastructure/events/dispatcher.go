// Package events publica en Kafka los eventos de la bandeja de salida.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// Producer lo que el dispatcher necesita de un *kafka.Writer.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter construye el writer; acks de todas las réplicas.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Dispatcher convierte un OutboxEvent en mensaje Kafka. La llave es el agregado,
// así los eventos de una misma orden caen en la misma partición y conservan su orden.
type Dispatcher struct {
	log      zerolog.Logger
	producer Producer
	topic    string
}

// NewDispatcher construye el dispatcher.
func NewDispatcher(log zerolog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// Dispatch publica un evento.
func (d *Dispatcher) Dispatch(ctx context.Context, ev entity.OutboxEvent) error {
	msg := kafka.Message{
		Topic: d.topic,
		Key:   []byte(ev.AggregateID),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(strconv.FormatInt(ev.ID, 10))},
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "aggregate_type", Value: []byte(ev.AggregateType)},
			{Key: "occurred_at", Value: []byte(ev.CreatedAt.UTC().Format(time.RFC3339Nano))},
		},
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error().Err(err).Int64("event_id", ev.ID).Str("type", ev.Type).Msg("publicación fallida")
		return err
	}
	d.log.Debug().Int64("event_id", ev.ID).Str("type", ev.Type).Msg("evento publicado")
	return nil
}
