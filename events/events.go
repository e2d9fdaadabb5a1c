// Package events publishes domain events such as registered canjes and
// adjudicated solicitudes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	CanjeRegistrado     = "canje-registrado"
	SolicitudAdjudicada = "solicitud-adjudicada"
)

type Publisher interface {
	Publish(ctx context.Context, tipo, id string, payload any) error
	Close() error
}

type envelope struct {
	Tipo    string    `json:"tipo"`
	ID      string    `json:"id"`
	Fecha   time.Time `json:"fecha"`
	Payload any       `json:"payload"`
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func mensaje(tipo, id string, payload any, now time.Time) (kafka.Message, error) {
	value, err := json.Marshal(envelope{Tipo: tipo, ID: id, Fecha: now, Payload: payload})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", tipo, err)
	}
	return kafka.Message{
		Key:   []byte(fmt.Sprintf("%s-%s", tipo, id)),
		Value: value,
		Time:  now,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, tipo, id string, payload any) error {
	msg, err := mensaje(tipo, id, payload, time.Now())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", tipo, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs events. It stands in when no brokers are configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, tipo, id string, payload any) error {
	p.log.InfoContext(ctx, "event", slog.String("tipo", tipo), slog.String("id", id))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
