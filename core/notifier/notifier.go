// Package notifier publishes change notifications for records written
// through the backend, either to a Kafka topic or to the log.
package notifier

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/segmentio/kafka-go"

	"github.com/flexbase-tech/flexbase/core"
	"github.com/flexbase-tech/flexbase/core/logger"
)

// Notification is the message envelope written to the topic.
type Notification struct {
	ApplicationID int64           `json:"application_id"`
	TableName     string          `json:"table_name"`
	Operation     core.Operation  `json:"operation"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// KafkaNotifier publishes notifications to a single Kafka topic, keyed
// by table name so that notifications for one table stay ordered.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier for the given brokers and topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Notify implements core.Notifier. Delivery is asynchronous, a failed
// write is logged but does not fail the originating request.
func (n *KafkaNotifier) Notify(applicationID int64, table string, operation core.Operation, payload []byte) {
	body, err := json.Marshal(Notification{
		ApplicationID: applicationID,
		TableName:     table,
		Operation:     operation,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		logger.Default().WithError(err).Errorln("cannot marshal notification")
		return
	}
	err = n.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(table),
		Value: body,
	})
	if err != nil {
		logger.Default().WithError(err).WithField("table", table).Errorln("cannot publish notification")
	}
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier writes notifications to the log. It is the fallback when
// no brokers are configured.
type LogNotifier struct{}

// Notify implements core.Notifier.
func (LogNotifier) Notify(applicationID int64, table string, operation core.Operation, payload []byte) {
	logger.Default().WithField("application_id", applicationID).
		WithField("table", table).
		WithField("operation", operation).
		Debugln("record notification")
}
