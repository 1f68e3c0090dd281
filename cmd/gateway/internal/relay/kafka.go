package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTickWriter writes each tick keyed by symbol, so one symbol stays on one partition.
type KafkaTickWriter struct {
	writer KafkaWriter
}

func NewKafkaTickWriter(writer KafkaWriter) *KafkaTickWriter {
	return &KafkaTickWriter{writer: writer}
}

func (w *KafkaTickWriter) WriteTick(ctx context.Context, tick models.PriceTick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}
	return w.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tick.Symbol),
		Value: payload,
	})
}

// Close flushes buffered messages.
func (w *KafkaTickWriter) Close() error { return w.writer.Close() }
