package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tigerpop/marketplace/internal/utils"
)

// NotificationQueueName is the durable queue carrying notification
// events from request handlers to the email consumer.
const NotificationQueueName = "marketplace.notifications"

// Sender delivers one notification event to its recipient.  The mailer
// implements it.
type Sender interface {
	Send(ev NotificationEvent) error
}

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// notification queue, and consumes events, handing each one to the
// sender.  It runs a reconnect loop with exponential backoff and never
// returns in normal operation; delivery failures are logged and the
// message acknowledged anyway, because notification email is
// best-effort by contract.
func StartNotificationConsumer(url string, sender Sender) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			utils.Warn("notification-consumer: dial failed", map[string]any{
				"error": err.Error(), "retry_in": backoff.String(),
			})
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(conn, sender)
		_ = conn.Close()
		if err != nil {
			utils.Warn("notification-consumer: consume loop ended", map[string]any{
				"error": err.Error(),
			})
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, sender Sender) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		utils.Warn("notification-consumer: set QoS failed", map[string]any{"error": err.Error()})
	}

	_, err = ch.QueueDeclare(NotificationQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(NotificationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		var ev NotificationEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			utils.Error("notification-consumer: bad payload", map[string]any{"error": err.Error()})
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		if err := sender.Send(ev); err != nil {
			// Email is best-effort; drop the event after logging.
			utils.Error("notification-consumer: send failed", map[string]any{
				"error": err.Error(), "type": ev.Type, "to": ev.ToNetID, "listing_id": ev.ListingID,
			})
		} else {
			utils.Info("notification sent", map[string]any{
				"type": ev.Type, "to": ev.ToNetID, "listing_id": ev.ListingID,
			})
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}
