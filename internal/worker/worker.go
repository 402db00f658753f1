package worker

import (
	"context"
	"log"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/notify"
)

// NotificationWorker consumes OrderPlaced events and delivers the order
// summary webhook outside the placement critical path, with capped
// retry/backoff per event.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	webhook      *notify.WebhookClient
	maxAttempts  int
}

// NewNotificationWorker creates a notification worker.
func NewNotificationWorker(consumer *broker.Consumer, webhook *notify.WebhookClient) *NotificationWorker {
	w := &NotificationWorker{
		consumer:    consumer,
		webhook:     webhook,
		maxAttempts: 3,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

// handleOrderPlaced delivers the webhook with backoff. Exhausted retries are
// logged and the event is committed anyway: notification is best effort and
// must never wedge the consumer.
func (w *NotificationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	if !w.webhook.Enabled() {
		return nil
	}

	backoff := time.Second
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.webhook.Deliver(ctx, event)
		if err == nil {
			return nil
		}

		log.Printf("Webhook delivery attempt %d/%d failed for order %d: %v",
			attempt, w.maxAttempts, event.OrderID, err)

		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	log.Printf("Giving up webhook delivery for order %d", event.OrderID)
	return nil
}
