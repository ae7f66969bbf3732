package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes each record as a JSON message keyed by vehicle id,
// so the records of one vehicle stay on one partition.
type KafkaWriter struct {
	w messageWriter
}

// NewKafkaWriter returns a writer producing to topic on brokers.
func NewKafkaWriter(brokers []string, topic string) (*KafkaWriter, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka audit backend needs brokers and a topic")
	}
	return &KafkaWriter{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

func (w *KafkaWriter) Name() string { return "kafka" }

func (w *KafkaWriter) Write(ctx context.Context, r Record) error {
	msg, err := kafkaMessage(r)
	if err != nil {
		return err
	}
	return w.w.WriteMessages(ctx, msg)
}

func (w *KafkaWriter) Close(context.Context) error {
	return w.w.Close()
}

func kafkaMessage(r Record) (kafka.Message, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(r.VehicleID),
		Value: value,
		Time:  r.RecordedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(r.Kind)},
		},
	}, nil
}
