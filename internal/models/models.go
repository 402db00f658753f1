package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        TranslatedText  `db:"name" json:"name"`
	Description TranslatedText  `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	CategoryID  int64           `db:"category_id" json:"category_id"`
	BrandID     *int64          `db:"brand_id" json:"brand_id,omitempty"`
	ImageURL    string          `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// VariantValues maps option name to chosen value, e.g. {"size": "L", "color": "red"}.
type VariantValues map[string]string

// Value implements driver.Valuer for the JSON column.
func (v VariantValues) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner.
func (v *VariantValues) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, v)
	case string:
		return json.Unmarshal([]byte(s), v)
	case nil:
		*v = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into VariantValues", src)
	}
}

// ProductVariant is a purchasable configuration of a product with its own price and stock.
type ProductVariant struct {
	ID        int64           `db:"id" json:"id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     int             `db:"stock" json:"stock"`
	SKU       *string         `db:"sku" json:"sku,omitempty"`
	Values    VariantValues   `db:"variant_values" json:"values"`
	IsDefault bool            `db:"is_default" json:"is_default"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Category groups products for storefront browsing.
type Category struct {
	ID        int64          `db:"id" json:"id"`
	Name      TranslatedText `db:"name" json:"name"`
	Slug      string         `db:"slug" json:"slug"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Brand is an optional product manufacturer reference.
type Brand struct {
	ID        int64          `db:"id" json:"id"`
	Name      TranslatedText `db:"name" json:"name"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order
type Order struct {
	ID               int64           `db:"id" json:"id"`
	UserID           int64           `db:"user_id" json:"user_id"`
	Phone            string          `db:"phone" json:"phone"`
	Latitude         float64         `db:"latitude" json:"latitude"`
	Longitude        float64         `db:"longitude" json:"longitude"`
	Address          string          `db:"address" json:"address,omitempty"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	DeliveryFee      decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	DeliveryDistance decimal.Decimal `db:"delivery_distance_km" json:"delivery_distance_km"`
	Status           string          `db:"status" json:"status"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method"`
	PaymentStatus    string          `db:"payment_status" json:"payment_status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is a denormalized snapshot of a purchased line, taken at order
// time so later catalog edits do not rewrite historical orders.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	VariantID *int64          `db:"variant_id" json:"variant_id,omitempty"`
	Name      string          `db:"name" json:"name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// PaymentSession is one tracked attempt to pay for an order through a provider.
// An order has at most one pending session at a time but keeps historical ones on retry.
type PaymentSession struct {
	ID                int64           `db:"id" json:"id"`
	OrderID           int64           `db:"order_id" json:"order_id"`
	UserID            int64           `db:"user_id" json:"user_id"`
	ProviderCode      string          `db:"provider_code" json:"provider_code"`
	ProviderSessionID string          `db:"provider_session_id" json:"provider_session_id,omitempty"`
	ProviderTxID      string          `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            string          `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// AppSettings is the singleton settings row. Services take it as a snapshot
// argument per workflow invocation, never as ambient state.
type AppSettings struct {
	ID                      int64           `db:"id" json:"id"`
	BaseDeliveryFee         decimal.Decimal `db:"base_delivery_fee" json:"base_delivery_fee"`
	DeliveryThresholdKm     decimal.Decimal `db:"delivery_distance_threshold_km" json:"delivery_distance_threshold_km"`
	ExtraFeePerKm           decimal.Decimal `db:"extra_fee_per_km" json:"extra_fee_per_km"`
	MaxDeliveryDistanceKm   decimal.Decimal `db:"max_delivery_distance_km" json:"max_delivery_distance_km"`
	CreditCardChargePercent decimal.Decimal `db:"credit_card_charge_percentage" json:"credit_card_charge_percentage"`
	StoreLatitude           float64         `db:"store_latitude" json:"store_latitude"`
	StoreLongitude          float64         `db:"store_longitude" json:"store_longitude"`
	GoogleMapsAPIKey        string          `db:"google_maps_api_key" json:"google_maps_api_key,omitempty"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Payment methods
const (
	PaymentMethodCash       = "cash"
	PaymentMethodCreditCard = "credit_card"
)

// Order payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Payment session statuses
const (
	SessionStatusPending = "pending"
	SessionStatusPayed   = "payed"
	SessionStatusFailed  = "failed"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is a supported payment method.
func ValidPaymentMethod(m string) bool {
	return m == PaymentMethodCash || m == PaymentMethodCreditCard
}

// TerminalSessionStatus reports whether a payment session status is final.
// Payed and failed sessions ignore further webhook deliveries.
func TerminalSessionStatus(s string) bool {
	return s == SessionStatusPayed || s == SessionStatusFailed
}
