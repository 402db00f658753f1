package service

import (
	"context"
	"math"
	"regexp"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/pricing"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// OrderStore is the persistence surface the placement workflow needs.
// Implemented by *store.Store; faked in tests.
type OrderStore interface {
	PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (string, error)
}

// SettingsSource yields the per-request settings snapshot.
type SettingsSource interface {
	Snapshot(ctx context.Context) (*models.AppSettings, error)
}

// PaymentStarter opens a payment session for a committed order.
type PaymentStarter interface {
	StartPayment(ctx context.Context, order *models.Order) (redirectURL string, err error)
}

// OrderEventPublisher publishes order lifecycle events; delivery is best effort.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// OrderPlacementService orchestrates validation, pricing, stock reservation
// and order creation.
type OrderPlacementService struct {
	store     OrderStore
	engine    *pricing.Engine
	settings  SettingsSource
	payments  PaymentStarter
	publisher OrderEventPublisher
	logger    *zap.Logger
	newEvent  func(eventType string) models.BaseEvent
}

// NewOrderPlacementService creates a new order placement service.
func NewOrderPlacementService(
	store OrderStore,
	engine *pricing.Engine,
	settings SettingsSource,
	payments PaymentStarter,
	publisher OrderEventPublisher,
) *OrderPlacementService {
	return &OrderPlacementService{
		store:     store,
		engine:    engine,
		settings:  settings,
		payments:  payments,
		publisher: publisher,
		logger:    util.GetLogger(),
		newEvent:  newBaseEvent,
	}
}

// PlaceOrderRequest represents a request to place an order.
// DistanceKm may be supplied by the distance collaborator; when absent it is
// derived from the store coordinates and the delivery location.
type PlaceOrderRequest struct {
	UserID        int64                 `json:"user_id" binding:"required"`
	Phone         string                `json:"phone"`
	Latitude      float64               `json:"latitude"`
	Longitude     float64               `json:"longitude"`
	Address       string                `json:"address"`
	DistanceKm    *decimal.Decimal      `json:"distance_km,omitempty"`
	Items         []pricing.LineRequest `json:"items"`
	PaymentMethod string                `json:"payment_method"`
}

// PlaceOrderResponse is returned after a successful placement. RedirectURL is
// set for card payments; PaymentError carries a transient provider failure
// that did not prevent the order from committing.
type PlaceOrderResponse struct {
	Order        *models.Order      `json:"order"`
	Items        []models.OrderItem `json:"items"`
	RedirectURL  string             `json:"redirect_url,omitempty"`
	PaymentError string             `json:"payment_error,omitempty"`
}

// PlaceOrder runs the placement workflow: validate, price, reserve stock and
// persist atomically, then branch on the payment method. All errors raised
// before the transaction leave no state behind; notification dispatch after
// commit never fails the request.
func (s *OrderPlacementService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderPlacementService.PlaceOrder")
	defer span.End()

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validate(req); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	distance := s.resolveDistance(req, settings)
	feeResult := pricing.ComputeFee(*settings, distance)
	if !feeResult.WithinRange {
		util.OrdersRejectedTotal.WithLabelValues("out_of_range").Inc()
		return nil, &models.OutOfDeliveryRangeError{
			DistanceKm: distance,
			MaxKm:      settings.MaxDeliveryDistanceKm,
		}
	}

	quote, err := s.engine.PriceOrder(ctx, req.Items, req.PaymentMethod, *settings)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("pricing").Inc()
		return nil, err
	}

	order := &models.Order{
		UserID:           req.UserID,
		Phone:            req.Phone,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		Address:          req.Address,
		TotalAmount:      quote.Subtotal.Add(quote.Surcharge).Add(feeResult.Fee),
		DeliveryFee:      feeResult.Fee,
		DeliveryDistance: distance,
		Status:           models.OrderStatusPending,
		PaymentMethod:    req.PaymentMethod,
		PaymentStatus:    models.PaymentStatusPending,
	}

	items := make([]models.OrderItem, len(quote.Lines))
	for i, line := range quote.Lines {
		items[i] = models.OrderItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		}
	}

	start := time.Now()
	if err := s.store.PlaceOrder(ctx, order, items); err != nil {
		if _, ok := err.(*models.InsufficientStockError); ok {
			util.OrdersRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	util.OrdersPlacedTotal.WithLabelValues(order.PaymentMethod).Inc()

	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("payment_method", order.PaymentMethod),
		zap.String("total", order.TotalAmount.String()))

	resp := &PlaceOrderResponse{Order: order, Items: items}

	if order.PaymentMethod == models.PaymentMethodCreditCard {
		redirectURL, err := s.payments.StartPayment(ctx, order)
		if err != nil {
			// The order is committed; the buyer retries payment separately.
			s.logger.Error("Payment session init failed",
				zap.Int64("order_id", order.ID), zap.Error(err))
			resp.PaymentError = "payment initialization failed, please retry"
		} else {
			resp.RedirectURL = redirectURL
		}
	}

	s.notifyPlaced(order, items)
	return resp, nil
}

// validate collects every field violation into one ValidationError.
func (s *OrderPlacementService) validate(req *PlaceOrderRequest) error {
	violations := map[string]string{}
	if !phonePattern.MatchString(req.Phone) {
		violations["phone"] = "must be a valid phone number"
	}
	if len(req.Items) == 0 {
		violations["items"] = "cart must not be empty"
	}
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		violations["payment_method"] = "must be cash or credit_card"
	}
	if req.DistanceKm != nil && req.DistanceKm.IsNegative() {
		violations["distance_km"] = "must not be negative"
	}
	if len(violations) > 0 {
		return models.NewValidationError(violations)
	}
	return nil
}

// resolveDistance prefers the collaborator-supplied distance and falls back
// to the great-circle distance from the store coordinates.
func (s *OrderPlacementService) resolveDistance(req *PlaceOrderRequest, settings *models.AppSettings) decimal.Decimal {
	if req.DistanceKm != nil {
		return *req.DistanceKm
	}
	km := haversineKm(settings.StoreLatitude, settings.StoreLongitude, req.Latitude, req.Longitude)
	return decimal.NewFromFloat(km).Round(3)
}

// notifyPlaced dispatches the order summary event off the critical path with
// a bounded timeout. Failures are logged, never surfaced to the buyer.
func (s *OrderPlacementService) notifyPlaced(order *models.Order, items []models.OrderItem) {
	if s.publisher == nil {
		return
	}

	lines := make([]models.OrderLineData, len(items))
	for i, item := range items {
		lines[i] = models.OrderLineData{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:     s.newEvent(models.EventTypeOrderPlaced),
		OrderID:       order.ID,
		UserID:        order.UserID,
		Phone:         order.Phone,
		TotalAmount:   order.TotalAmount,
		DeliveryFee:   order.DeliveryFee,
		PaymentMethod: order.PaymentMethod,
		Items:         lines,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderPlaced event",
				zap.Int64("order_id", event.OrderID), zap.Error(err))
		}
	}()
}

// GetOrder retrieves an order with its items.
func (s *OrderPlacementService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders retrieves a user's orders, newest first.
func (s *OrderPlacementService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// ChangeStatus applies an admin status transition and publishes the change.
func (s *OrderPlacementService) ChangeStatus(ctx context.Context, orderID int64, status string) error {
	if !models.ValidOrderStatus(status) {
		return models.NewValidationError(map[string]string{"status": "unknown order status"})
	}

	old, err := s.store.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return err
	}

	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("old", old),
		zap.String("new", status))

	if s.publisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: s.newEvent(models.EventTypeOrderStatusChanged),
			OrderID:   orderID,
			OldStatus: old,
			NewStatus: status,
		}
		if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}
	return nil
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
