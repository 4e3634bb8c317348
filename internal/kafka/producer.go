package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
)

// Producer streams admission scan events. Publishing is best effort: a
// broker outage must never fail a redemption, so callers log and continue.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Logger: log}
}

// PublishScan streams one scan event, keyed by credential code so scans of
// the same code stay ordered within a partition.
func (p *Producer) PublishScan(ev models.ScanEvent) error {
	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("publish", p.Writer.Topic, fmt.Sprintf("[%s] %s", ev.Type, ev.Code))
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(ev.Code),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
