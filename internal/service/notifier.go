// Package service holds the notification publisher used by request
// handlers.  Publishing is strictly best-effort: by the time a
// notification is emitted the triggering mutation has committed, so no
// broker or mail failure may surface to the client.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tigerpop/marketplace/internal/queue"
	"github.com/tigerpop/marketplace/internal/utils"
)

// Notifier publishes notification events to the durable marketplace
// queue.  When the broker is unreachable it falls back to sending the
// email synchronously through Fallback; when that also fails the event
// is logged and dropped.
type Notifier struct {
	URL      string       // RabbitMQ connection URL
	Fallback queue.Sender // direct mailer used when publishing fails
}

// NewNotifier returns a Notifier for the given broker URL and fallback
// sender.
func NewNotifier(url string, fallback queue.Sender) *Notifier {
	return &Notifier{URL: url, Fallback: fallback}
}

// Notify stamps and dispatches one event.  It never returns an error;
// failures are logged and swallowed so the caller's committed operation
// stands.
func (n *Notifier) Notify(ctx context.Context, ev queue.NotificationEvent) {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	if err := n.publish(ctx, ev); err != nil {
		utils.Warn("notifier: publish failed, sending directly", map[string]any{
			"error": err.Error(), "type": ev.Type, "listing_id": ev.ListingID,
		})
		if n.Fallback == nil {
			return
		}
		if err := n.Fallback.Send(ev); err != nil {
			utils.Error("notifier: direct send failed, dropping event", map[string]any{
				"error": err.Error(), "type": ev.Type, "to": ev.ToNetID, "listing_id": ev.ListingID,
			})
		}
	}
}

// publish writes the event to the durable notification queue.  The
// connection is short-lived; notification volume is a handful of
// messages per request at most.
func (n *Notifier) publish(ctx context.Context, ev queue.NotificationEvent) error {
	conn, err := amqp.Dial(n.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(queue.NotificationQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	return ch.PublishWithContext(ctx, "", queue.NotificationQueueName, false, false, pub)
}
