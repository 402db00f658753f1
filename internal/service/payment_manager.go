package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const webhookDedupeTTL = 24 * time.Hour

// SessionStore is the persistence surface of the payment workflow.
// Implemented by *store.Store; faked in tests.
type SessionStore interface {
	CreatePaymentSession(ctx context.Context, session *models.PaymentSession) error
	SetSessionProviderRef(ctx context.Context, sessionID int64, providerSessionID string) error
	GetSessionByProviderRef(ctx context.Context, providerSessionID string) (*models.PaymentSession, error)
	GetSessionsByOrderID(ctx context.Context, orderID int64) ([]models.PaymentSession, error)
	SettleSession(ctx context.Context, sessionID int64, status, providerTxID string) (bool, error)
}

// WebhookDeduper is a cheap seen-before check consulted ahead of the database
// on webhook redeliveries. The session's terminal status in the database
// remains the source of truth; marks are cleared when settlement fails so a
// provider retry lands.
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, providerTxID string, ttl time.Duration) (bool, error)
	ClearWebhookSeen(ctx context.Context, providerTxID string) error
}

// PaymentEventPublisher publishes reconciliation outcomes; best effort.
type PaymentEventPublisher interface {
	PublishPaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error
}

// PaymentSessionManager creates and tracks payment sessions per order,
// delegates to the provider registry, and reconciles webhook callbacks.
type PaymentSessionManager struct {
	store           SessionStore
	registry        *payment.Registry
	dedupe          WebhookDeduper
	publisher       PaymentEventPublisher
	defaultProvider string
	logger          *zap.Logger
}

// NewPaymentSessionManager creates a payment session manager. dedupe and
// publisher may be nil.
func NewPaymentSessionManager(
	store SessionStore,
	registry *payment.Registry,
	dedupe WebhookDeduper,
	publisher PaymentEventPublisher,
	defaultProvider string,
) *PaymentSessionManager {
	return &PaymentSessionManager{
		store:           store,
		registry:        registry,
		dedupe:          dedupe,
		publisher:       publisher,
		defaultProvider: defaultProvider,
		logger:          util.GetLogger(),
	}
}

// CreateSession persists a pending session row before any provider
// interaction, so a crash after creation still leaves an auditable record.
func (m *PaymentSessionManager) CreateSession(ctx context.Context, providerCode string, orderID, userID int64, amount decimal.Decimal) (*models.PaymentSession, error) {
	if _, err := m.registry.Lookup(providerCode); err != nil {
		return nil, err
	}

	session := &models.PaymentSession{
		OrderID:      orderID,
		UserID:       userID,
		ProviderCode: providerCode,
		Amount:       amount,
		Status:       models.SessionStatusPending,
	}
	if err := m.store.CreatePaymentSession(ctx, session); err != nil {
		return nil, err
	}

	util.PaymentSessionsTotal.WithLabelValues(providerCode).Inc()
	m.logger.Info("Payment session created",
		zap.Int64("session_id", session.ID),
		zap.Int64("order_id", orderID),
		zap.String("provider", providerCode))
	return session, nil
}

// Init asks the provider for a reference and redirect target and stores the
// reference as provider_session_id.
func (m *PaymentSessionManager) Init(ctx context.Context, session *models.PaymentSession) (string, error) {
	provider, err := m.registry.Lookup(session.ProviderCode)
	if err != nil {
		return "", err
	}

	result, err := provider.Init(ctx, session)
	if err != nil {
		if _, ok := err.(*models.PaymentProviderError); ok {
			return "", err
		}
		return "", &models.PaymentProviderError{Code: session.ProviderCode, Err: err}
	}

	if err := m.store.SetSessionProviderRef(ctx, session.ID, result.Reference); err != nil {
		return "", err
	}
	session.ProviderSessionID = result.Reference

	return result.RedirectURL, nil
}

// StartPayment opens a session with the default provider for a committed
// order and returns the redirect target. Used both at placement time and for
// buyer-initiated payment retries; each retry accumulates a fresh session.
func (m *PaymentSessionManager) StartPayment(ctx context.Context, order *models.Order) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentSessionManager.StartPayment")
	defer span.End()

	session, err := m.CreateSession(ctx, m.defaultProvider, order.ID, order.UserID, order.TotalAmount)
	if err != nil {
		return "", err
	}
	return m.Init(ctx, session)
}

// WebhookPayload is the provider callback carrying the session reference and
// the settlement outcome. Fields holds every signed scalar of the raw body
// and SecureHash the signature to verify them against.
type WebhookPayload struct {
	Reference    string            `json:"MerchantReference"`
	ProviderTxID string            `json:"SystemReference"`
	Success      bool              `json:"Success"`
	SecureHash   string            `json:"-"`
	Fields       map[string]string `json:"-"`
}

// ParseWebhookPayload decodes a provider callback body. Every scalar field
// except the hash itself participates in signature verification.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	payload := &WebhookPayload{Fields: make(map[string]string, len(raw))}
	for key, value := range raw {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case bool:
			s = strconv.FormatBool(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			continue
		}

		switch key {
		case "SecureHash":
			payload.SecureHash = s
			continue
		case "MerchantReference":
			payload.Reference = s
		case "SystemReference":
			payload.ProviderTxID = s
		case "Success":
			payload.Success = s == "true"
		}
		payload.Fields[key] = s
	}
	return payload, nil
}

// Reconcile applies an asynchronous provider outcome to its session.
// Idempotent: redelivery of the same provider transaction short-circuits on
// the dedupe mark before touching the database, and any delivery for an
// already terminal session is acknowledged and ignored. Payloads from signing
// providers are verified before anything settles.
func (m *PaymentSessionManager) Reconcile(ctx context.Context, payload *WebhookPayload) error {
	ctx, span := util.StartSpan(ctx, "PaymentSessionManager.Reconcile")
	defer span.End()

	marked := false
	if m.dedupe != nil && payload.ProviderTxID != "" {
		fresh, err := m.dedupe.MarkWebhookSeen(ctx, payload.ProviderTxID, webhookDedupeTTL)
		if err != nil {
			m.logger.Warn("Webhook dedupe check failed", zap.Error(err))
		} else if !fresh {
			util.PaymentReconciliationsTotal.WithLabelValues("ignored").Inc()
			m.logger.Info("Webhook redelivery ignored",
				zap.String("provider_tx_id", payload.ProviderTxID))
			return nil
		} else {
			marked = true
		}
	}

	session, err := m.store.GetSessionByProviderRef(ctx, payload.Reference)
	if err != nil {
		m.clearWebhookMark(ctx, payload.ProviderTxID, marked)
		return err
	}

	provider, err := m.registry.Lookup(session.ProviderCode)
	if err != nil {
		m.clearWebhookMark(ctx, payload.ProviderTxID, marked)
		return err
	}
	if verifier, ok := provider.(payment.WebhookVerifier); ok {
		valid, err := verifier.VerifyWebhookHash(payload.Fields, payload.SecureHash)
		if err != nil {
			m.clearWebhookMark(ctx, payload.ProviderTxID, marked)
			return &models.PaymentProviderError{Code: session.ProviderCode, Err: err}
		}
		if !valid {
			m.clearWebhookMark(ctx, payload.ProviderTxID, marked)
			util.PaymentReconciliationsTotal.WithLabelValues("rejected").Inc()
			m.logger.Warn("Webhook signature rejected",
				zap.Int64("session_id", session.ID),
				zap.String("provider", session.ProviderCode))
			return &models.InvalidSignatureError{Provider: session.ProviderCode}
		}
	}

	status := models.SessionStatusFailed
	if payload.Success {
		status = models.SessionStatusPayed
	}

	applied, err := m.store.SettleSession(ctx, session.ID, status, payload.ProviderTxID)
	if err != nil {
		m.clearWebhookMark(ctx, payload.ProviderTxID, marked)
		return err
	}
	if !applied {
		util.PaymentReconciliationsTotal.WithLabelValues("ignored").Inc()
		m.logger.Info("Webhook redelivery ignored, session already terminal",
			zap.Int64("session_id", session.ID),
			zap.String("provider_tx_id", payload.ProviderTxID))
		return nil
	}

	util.PaymentReconciliationsTotal.WithLabelValues(status).Inc()
	m.logger.Info("Payment session reconciled",
		zap.Int64("session_id", session.ID),
		zap.Int64("order_id", session.OrderID),
		zap.String("status", status),
		zap.String("provider_tx_id", payload.ProviderTxID))

	if m.publisher != nil {
		event := &models.PaymentReconciledEvent{
			BaseEvent:    newBaseEvent(models.EventTypePaymentReconciled),
			OrderID:      session.OrderID,
			SessionID:    session.ID,
			ProviderCode: session.ProviderCode,
			ProviderTxID: payload.ProviderTxID,
			Amount:       session.Amount,
			Status:       status,
		}
		if err := m.publisher.PublishPaymentReconciled(ctx, event); err != nil {
			m.logger.Error("Failed to publish PaymentReconciled event", zap.Error(err))
		}
	}

	return nil
}

// clearWebhookMark drops the dedupe mark set at the top of Reconcile so a
// provider retry of a failed settlement is not swallowed.
func (m *PaymentSessionManager) clearWebhookMark(ctx context.Context, providerTxID string, marked bool) {
	if !marked {
		return
	}
	if err := m.dedupe.ClearWebhookSeen(ctx, providerTxID); err != nil {
		m.logger.Warn("Failed to clear webhook dedupe key", zap.Error(err))
	}
}

// ListSessions returns an order's sessions, newest first.
func (m *PaymentSessionManager) ListSessions(ctx context.Context, orderID int64) ([]models.PaymentSession, error) {
	return m.store.GetSessionsByOrderID(ctx, orderID)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
