package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// PlaceOrder reserves stock and persists the order with its items in one
// transaction, so a crash between steps can never leave stock decremented
// without a matching order row. On any shortfall nothing is written and the
// returned InsufficientStockError lists every insufficient line.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lines := make([]ReserveLine, len(items))
	for i, item := range items {
		lines[i] = ReserveLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}
	if err := reserveLines(ctx, tx, lines); err != nil {
		return err
	}

	query := `
		INSERT INTO orders (user_id, phone, latitude, longitude, address,
		                    total_amount, delivery_fee, delivery_distance_km,
		                    status, payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.UserID, order.Phone, order.Latitude, order.Longitude, order.Address,
		order.TotalAmount, order.DeliveryFee, order.DeliveryDistance,
		order.Status, order.PaymentMethod, order.PaymentStatus); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, variant_id, name, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].VariantID,
			items[i].Name, items[i].UnitPrice, items[i].Quantity, items[i].Subtotal); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus transitions an order's status and returns the previous
// one. Unknown orders report NotFoundError; completed and cancelled orders
// are terminal and report TerminalOrderError. Cancelling an order returns
// its reserved quantities to stock in the same transaction.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var old string
	err = tx.GetContext(ctx, &old,
		"SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return "", &models.NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return "", err
	}

	if old == models.OrderStatusCompleted || old == models.OrderStatusCancelled {
		return "", &models.TerminalOrderError{OrderID: orderID, Status: old}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID); err != nil {
		return "", err
	}

	if status == models.OrderStatusCancelled {
		var items []models.OrderItem
		if err := tx.SelectContext(ctx, &items,
			"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID); err != nil {
			return "", err
		}
		lines := make([]ReserveLine, len(items))
		for i, item := range items {
			lines[i] = ReserveLine{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
			}
		}
		if err := restockLines(ctx, tx, lines); err != nil {
			return "", err
		}
	}

	return old, tx.Commit()
}

// SetOrderPaymentStatus updates the order-level payment status.
func (s *Store) SetOrderPaymentStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "order", ID: orderID}
	}
	return nil
}

// CreatePaymentSession persists a pending session row. This happens before
// any provider interaction so a crash still leaves an auditable record.
func (s *Store) CreatePaymentSession(ctx context.Context, session *models.PaymentSession) error {
	query := `
		INSERT INTO payment_sessions (order_id, user_id, provider_code, provider_session_id, provider_tx_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, session, query,
		session.OrderID, session.UserID, session.ProviderCode,
		session.ProviderSessionID, session.ProviderTxID, session.Amount, session.Status)
}

// GetSessionByProviderRef retrieves a session by the opaque reference the
// provider echoes back in webhooks.
func (s *Store) GetSessionByProviderRef(ctx context.Context, providerSessionID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.GetContext(ctx, &session,
		"SELECT * FROM payment_sessions WHERE provider_session_id = $1", providerSessionID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "payment session", ID: 0}
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSessionsByOrderID retrieves all sessions for an order, newest first.
func (s *Store) GetSessionsByOrderID(ctx context.Context, orderID int64) ([]models.PaymentSession, error) {
	var sessions []models.PaymentSession
	err := s.db.SelectContext(ctx, &sessions,
		"SELECT * FROM payment_sessions WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return sessions, err
}

// SetSessionProviderRef records the reference generated at init time.
func (s *Store) SetSessionProviderRef(ctx context.Context, sessionID int64, providerSessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_sessions SET provider_session_id = $1, updated_at = NOW() WHERE id = $2",
		providerSessionID, sessionID)
	return err
}

// SettleSession applies a webhook outcome to a session and its order in one
// transaction. Returns false without mutating anything when the session is
// already terminal, making reconciliation idempotent under redelivery.
func (s *Store) SettleSession(ctx context.Context, sessionID int64, status, providerTxID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var session models.PaymentSession
	err = tx.GetContext(ctx, &session,
		"SELECT * FROM payment_sessions WHERE id = $1 FOR UPDATE", sessionID)
	if err == sql.ErrNoRows {
		return false, &models.NotFoundError{Resource: "payment session", ID: sessionID}
	}
	if err != nil {
		return false, err
	}

	if models.TerminalSessionStatus(session.Status) {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE payment_sessions SET status = $1, provider_tx_id = $2, updated_at = NOW() WHERE id = $3",
		status, providerTxID, sessionID); err != nil {
		return false, err
	}

	orderStatus := models.PaymentStatusFailed
	if status == models.SessionStatusPayed {
		orderStatus = models.PaymentStatusPaid
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		orderStatus, session.OrderID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
