package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypePaymentReconciled  = "PAYMENT_RECONCILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLineData represents item data in events
type OrderLineData struct {
	ProductID int64           `json:"product_id"`
	VariantID *int64          `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderPlacedEvent is published once an order and its stock decrement have
// committed; the notification worker fans it out to the webhook.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Phone         string          `json:"phone"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderLineData `json:"items"`
}

// OrderStatusChangedEvent is published on admin status transitions.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// PaymentReconciledEvent is published when a webhook settles a session.
type PaymentReconciledEvent struct {
	BaseEvent
	OrderID      int64           `json:"order_id"`
	SessionID    int64           `json:"session_id"`
	ProviderCode string          `json:"provider_code"`
	ProviderTxID string          `json:"provider_tx_id"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
}
