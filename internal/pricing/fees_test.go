package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"storefront-service/internal/models"
)

func feeSettings() models.AppSettings {
	return models.AppSettings{
		BaseDeliveryFee:       decimal.RequireFromString("5.0"),
		DeliveryThresholdKm:   decimal.RequireFromString("5.0"),
		ExtraFeePerKm:         decimal.RequireFromString("1.0"),
		MaxDeliveryDistanceKm: decimal.RequireFromString("20.0"),
	}
}

func TestComputeFeeTiers(t *testing.T) {
	settings := feeSettings()

	cases := []struct {
		distance string
		fee      string
	}{
		{"0", "5.00"},
		{"3", "5.00"},
		{"5", "5.00"},
		{"7", "7.00"},
		{"12.5", "12.50"},
		{"20", "20.00"},
	}

	for _, tc := range cases {
		result := ComputeFee(settings, decimal.RequireFromString(tc.distance))
		assert.True(t, result.WithinRange, "distance %s should be deliverable", tc.distance)
		assert.True(t, result.Fee.Equal(decimal.RequireFromString(tc.fee)),
			"fee(%s) = %s, want %s", tc.distance, result.Fee, tc.fee)
	}
}

func TestComputeFeeOutOfRange(t *testing.T) {
	settings := feeSettings()

	result := ComputeFee(settings, decimal.RequireFromString("21"))
	assert.False(t, result.WithinRange)
	assert.True(t, result.Fee.IsZero(), "no fee is computed for out-of-range distances")

	result = ComputeFee(settings, decimal.RequireFromString("20.001"))
	assert.False(t, result.WithinRange)
}

func TestComputeFeeMonotonic(t *testing.T) {
	settings := feeSettings()

	prev := decimal.Zero
	for d := decimal.Zero; d.LessThanOrEqual(settings.MaxDeliveryDistanceKm); d = d.Add(decimal.RequireFromString("0.5")) {
		result := ComputeFee(settings, d)
		assert.True(t, result.WithinRange)
		assert.True(t, result.Fee.GreaterThanOrEqual(prev),
			"fee must be non-decreasing, got %s after %s at distance %s", result.Fee, prev, d)
		prev = result.Fee
	}
}

func TestComputeFeeRoundsOnceHalfUp(t *testing.T) {
	settings := models.AppSettings{
		BaseDeliveryFee:       decimal.RequireFromString("2.00"),
		DeliveryThresholdKm:   decimal.Zero,
		ExtraFeePerKm:         decimal.RequireFromString("0.335"),
		MaxDeliveryDistanceKm: decimal.RequireFromString("50"),
	}

	// 2.00 + 1.5 * 0.335 = 2.5025 -> 2.50; rounding each factor first would give 2.51.
	result := ComputeFee(settings, decimal.RequireFromString("1.5"))
	assert.True(t, result.Fee.Equal(decimal.RequireFromString("2.50")), "got %s", result.Fee)

	// 2.00 + 1 * 0.335 = 2.335 -> half-up to 2.34.
	result = ComputeFee(settings, decimal.RequireFromString("1"))
	assert.True(t, result.Fee.Equal(decimal.RequireFromString("2.34")), "got %s", result.Fee)
}
