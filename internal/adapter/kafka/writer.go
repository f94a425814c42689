// Package kafka publishes stored gage readings to a Kafka topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-gage-etl/internal/config"
	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// Writer produces reading messages to the configured Kafka topic.
// It implements runner.ReadingSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the readings topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReadings serializes and publishes the readings stored for one gage
// in a single WriteMessages call. Keying by gage ID keeps each gage's
// readings ordered within a partition.
func (w *Writer) PublishReadings(ctx context.Context, g domain.Gage, readings domain.Series) error {
	if len(readings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(readings))
	for i := range readings {
		msg, err := serializeToMessage(g, readings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// readingMessage is the wire shape of a published reading.
type readingMessage struct {
	GageID    string  `json:"gage_id"`
	Source    string  `json:"source"`
	River     string  `json:"river"`
	Units     string  `json:"units"`
	Value     float64 `json:"value"`
	Known     bool    `json:"known"`
	Timestamp string  `json:"timestamp"`
}

// serializeToMessage marshals one reading into a Kafka message.
func serializeToMessage(g domain.Gage, r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(readingMessage{
		GageID:    g.ID,
		Source:    string(g.Type),
		River:     g.River,
		Units:     string(g.Units),
		Value:     r.Value,
		Known:     r.Known,
		Timestamp: r.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(g.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(g.Type)},
		},
	}, nil
}
