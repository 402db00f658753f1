package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError carries every field violation found in a request so the
// buyer sees all problems in one response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field→message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// NotFoundError signals an unknown product, variant, category, brand or order.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// StockShortfall describes one insufficient line in a reservation attempt.
type StockShortfall struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError reports every shortfall line of a failed
// reservation, not just the first.
type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		if s.VariantID != nil {
			parts = append(parts, fmt.Sprintf("product %d variant %d: requested %d, available %d",
				s.ProductID, *s.VariantID, s.Requested, s.Available))
			continue
		}
		parts = append(parts, fmt.Sprintf("product %d: requested %d, available %d",
			s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// OutOfDeliveryRangeError signals a delivery distance beyond the configured maximum.
type OutOfDeliveryRangeError struct {
	DistanceKm decimal.Decimal
	MaxKm      decimal.Decimal
}

func (e *OutOfDeliveryRangeError) Error() string {
	return fmt.Sprintf("delivery distance %s km exceeds maximum %s km",
		e.DistanceKm.String(), e.MaxKm.String())
}

// UnknownProviderError is a configuration error: no payment provider is
// registered under the requested code.
type UnknownProviderError struct {
	Code string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown payment provider: %s", e.Code)
}

// PaymentProviderError wraps a transient provider failure, safe to surface
// to the buyer as "try again".
type PaymentProviderError struct {
	Code string
	Err  error
}

func (e *PaymentProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Code, e.Err)
}

func (e *PaymentProviderError) Unwrap() error {
	return e.Err
}

// InvalidSignatureError rejects a webhook callback whose secure hash does not
// verify against the provider's merchant secret.
type InvalidSignatureError struct {
	Provider string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("webhook signature verification failed for provider %s", e.Provider)
}

// TerminalOrderError rejects status transitions on completed or cancelled orders.
type TerminalOrderError struct {
	OrderID int64
	Status  string
}

func (e *TerminalOrderError) Error() string {
	return fmt.Sprintf("order %d is %s and cannot change status", e.OrderID, e.Status)
}

// BrandInUseError guards brand deletion while products still reference it.
type BrandInUseError struct {
	BrandID      int64
	ProductCount int
}

func (e *BrandInUseError) Error() string {
	return fmt.Sprintf("brand %d still referenced by %d products", e.BrandID, e.ProductCount)
}
