// Package kafka consumes alert-closure events. Closure is an external
// trigger: when an alert ends, the event moves it from the user's active
// set to the cached set, making the user reportable.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"

	"airalert-service/internal/logging"
)

// ClosureStore moves a closed alert into a user's cached set.
type ClosureStore interface {
	CacheAlert(ctx context.Context, recordID, alertIndex int) error
}

// closureEvent is the payload of one alert-closure message.
type closureEvent struct {
	RecordID   int `json:"record_id"`
	AlertIndex int `json:"alert_index"`
}

// Consumer reads closure events from the configured topic.
type Consumer struct {
	reader *kafka.Reader
	store  ClosureStore
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, store ClosureStore, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{reader: reader, store: store, logger: logger}
}

// Start consumes until ctx is cancelled. Malformed or invalid messages
// are logged and committed so they are not redelivered.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Infof("Kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Infof("Kafka consumer stopped")
				return
			}
			c.logger.Errorf("Fetch message failed: %v", err)
			continue
		}

		event, err := parseClosureEvent(msg.Value)
		if err != nil {
			// Poison message: commit so it is not redelivered.
			c.logger.Errorf("Closure event dropped: %v", err)
			c.commit(ctx, msg)
			continue
		}

		if err := c.store.CacheAlert(ctx, event.RecordID, event.AlertIndex); err != nil {
			// Leave uncommitted so the event is redelivered.
			c.logger.Errorf("Failed to cache alert %d for user %d: %v", event.AlertIndex, event.RecordID, err)
			continue
		}
		c.logger.Infof("Alert %d cached for user %d", event.AlertIndex, event.RecordID)
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Errorf("Commit failed: %v", err)
	}
}

// parseClosureEvent validates one closure payload.
func parseClosureEvent(value []byte) (closureEvent, error) {
	var event closureEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return closureEvent{}, fmt.Errorf("unmarshal closure event: %w", err)
	}
	if event.RecordID < 1 || event.AlertIndex < 1 {
		return closureEvent{}, fmt.Errorf("invalid closure event: record_id=%d alert_index=%d", event.RecordID, event.AlertIndex)
	}
	return event, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
