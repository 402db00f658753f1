package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// WebhookClient delivers order summaries to the external notification
// collaborator. Delivery is best-effort: failures are logged and counted,
// never propagated to the buyer's request.
type WebhookClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookClient creates a webhook client with a bounded timeout.
func NewWebhookClient(url string, timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: util.GetLogger(),
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *WebhookClient) Enabled() bool {
	return w.url != ""
}

// Deliver posts the order summary. A non-2xx response is an error so the
// worker's retry policy can kick in.
func (w *WebhookClient) Deliver(ctx context.Context, event *models.OrderPlacedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		util.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.WebhookDeliveriesTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	util.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	w.logger.Info("Order notification delivered", zap.Int64("order_id", event.OrderID))
	return nil
}
