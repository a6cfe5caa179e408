package event

import (
	"context"
	"log/slog"

	"github.com/suivie/storefront/pkg/kafka"
	"github.com/suivie/storefront/pkg/logger"
)

// ChangedEventType is the envelope type of cart change events.
const ChangedEventType = "cart.changed"

// ChangedTopic carries cart change events.
var ChangedTopic = kafka.Topic("cart", "changed")

// EventPublisher is the part of *kafka.Producer the notifier needs.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// KafkaNotifier announces changes as events on ChangedTopic. Receiving
// goes through Run, which should use a consumer group unique to the
// process so that every process sees every change.
type KafkaNotifier struct {
	hub
	producer EventPublisher
	source   string
	logger   *slog.Logger
}

// NewKafkaNotifier creates a notifier publishing through producer. source
// names the emitting service in the envelope.
func NewKafkaNotifier(producer EventPublisher, source string, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, source: source, logger: logger}
}

// Publish emits c keyed by the slot key.
func (n *KafkaNotifier) Publish(ctx context.Context, c Change) error {
	ev, err := kafka.NewEvent(ChangedEventType, c.Key, n.source, c)
	if err != nil {
		return err
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}
	if err := n.producer.Publish(ctx, ChangedTopic, ev); err != nil {
		notificationsTotal.WithLabelValues("kafka", "failed").Inc()
		return err
	}
	notificationsTotal.WithLabelValues("kafka", "published").Inc()
	return nil
}

// Handle is the kafka.Handler that dispatches change events. Foreign or
// malformed events are dropped rather than retried.
func (n *KafkaNotifier) Handle(ctx context.Context, ev *kafka.Event) error {
	if ev.Type != ChangedEventType {
		return nil
	}
	var c Change
	if err := ev.UnmarshalData(&c); err != nil {
		n.logger.Warn("dropping malformed change event",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	notificationsTotal.WithLabelValues("kafka", "received").Inc()
	n.dispatch(ctx, c)
	return nil
}

// Consumer returns a group consumer of ChangedTopic delivering to Handle.
// cfg.Topic is ignored.
func (n *KafkaNotifier) Consumer(cfg kafka.ConsumerConfig) *kafka.Consumer {
	cfg.Topic = ChangedTopic
	return kafka.NewConsumer(cfg, n.Handle, n.logger)
}
