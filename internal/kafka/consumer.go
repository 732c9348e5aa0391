package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkoff/tourbooking/config"
	"github.com/avolkoff/tourbooking/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Consumer reads booking events off a topic and hands them to the worker
// already decoded. One undecodable message is logged and skipped, never
// wedging the consumer group.
type Consumer struct {
	reader *kafka.Reader
	log    logger.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, log logger.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Brokers,
			GroupID:           cfg.GroupID,
			Topic:             topic,
			HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second,
			SessionTimeout:    time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume blocks until the context is canceled or the handler fails. Handler
// errors stop the loop; decode failures only cost the one message.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, BookingEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		event, err := decodeEvent(msg.Value)
		if err != nil {
			c.log.Warn("skipping undecodable booking event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}

		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

func decodeEvent(payload []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	return event, nil
}
