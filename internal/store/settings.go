package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// GetSettings retrieves the singleton settings row.
func (s *Store) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := s.db.GetContext(ctx, &settings, "SELECT * FROM app_settings WHERE id = 1")
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("app settings row missing")
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings writes the singleton settings row.
func (s *Store) UpdateSettings(ctx context.Context, settings *models.AppSettings) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE app_settings
		SET base_delivery_fee = $1, delivery_distance_threshold_km = $2,
		    extra_fee_per_km = $3, max_delivery_distance_km = $4,
		    credit_card_charge_percentage = $5, store_latitude = $6,
		    store_longitude = $7, google_maps_api_key = $8, updated_at = NOW()
		WHERE id = 1`,
		settings.BaseDeliveryFee, settings.DeliveryThresholdKm,
		settings.ExtraFeePerKm, settings.MaxDeliveryDistanceKm,
		settings.CreditCardChargePercent, settings.StoreLatitude,
		settings.StoreLongitude, settings.GoogleMapsAPIKey)
	return err
}
