package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
)

// FeeResult is the outcome of a delivery fee computation. When WithinRange is
// false no fee is computed and the caller must reject the order.
type FeeResult struct {
	Fee         decimal.Decimal
	WithinRange bool
}

// ComputeFee converts a delivery distance into a fee using tiered linear
// pricing: the first DeliveryThresholdKm kilometers are covered by the base
// fee, every kilometer beyond it costs ExtraFeePerKm.
//
// The fee is rounded exactly once, half-up to 2 digits, at the final value.
// Pure function over the settings snapshot; safe to call concurrently.
func ComputeFee(settings models.AppSettings, distanceKm decimal.Decimal) FeeResult {
	if distanceKm.GreaterThan(settings.MaxDeliveryDistanceKm) {
		return FeeResult{WithinRange: false}
	}

	excess := distanceKm.Sub(settings.DeliveryThresholdKm)
	if excess.IsNegative() {
		excess = decimal.Zero
	}

	fee := settings.BaseDeliveryFee.Add(excess.Mul(settings.ExtraFeePerKm))
	return FeeResult{
		Fee:         fee.Round(2),
		WithinRange: true,
	}
}
