// Package kafka publica notificaciones como records en un topic.
// La key es el user id para mantener el orden por destinatario.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pet-rehoming/internal/ports/notifications"

	"github.com/twmb/franz-go/pkg/kgo"
)

const eventHeader = "event"

// producer es el subconjunto de *kgo.Client que usa el sink.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type Sink struct {
	producer producer
	topic    string
}

// New abre un cliente franz-go. Cerrar con Close al apagar.
func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.New("kafka: topic required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if id := strings.TrimSpace(cfg.ClientID); id != "" {
		opts = append(opts, kgo.ClientID(id))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}
	return &Sink{producer: client, topic: topic}, nil
}

func newWithProducer(p producer, topic string) *Sink {
	return &Sink{producer: p, topic: topic}
}

func (s *Sink) Notify(ctx context.Context, n notifications.Notification) error {
	rec, err := s.record(n)
	if err != nil {
		return err
	}
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	if s != nil && s.producer != nil {
		s.producer.Close()
	}
}

func (s *Sink) record(n notifications.Notification) (*kgo.Record, error) {
	if strings.TrimSpace(n.UserID) == "" {
		return nil, errors.New("kafka: notification without user_id")
	}
	value, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("kafka: marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(n.UserID),
		Value: value,
	}
	if ev, ok := n.Data["event"].(string); ok && ev != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: eventHeader, Value: []byte(ev)})
	}
	return rec, nil
}
