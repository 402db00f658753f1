package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
)

// CodeMoamalat is the registry code of the Moamalat lightbox provider.
const CodeMoamalat = "moamalat"

// MoamalatConfig holds the merchant credentials issued by the gateway.
// Secret is the hex-encoded HMAC key.
type MoamalatConfig struct {
	MerchantID  string
	TerminalID  string
	Secret      string
	CheckoutURL string
}

// Moamalat implements the hosted lightbox checkout flow: Init builds a signed
// redirect URL, Pay is a no-op because the gateway has no direct-pay API and
// settles via webhook only.
type Moamalat struct {
	cfg MoamalatConfig
	now func() time.Time
}

// NewMoamalat creates a Moamalat provider.
func NewMoamalat(cfg MoamalatConfig) *Moamalat {
	return &Moamalat{cfg: cfg, now: time.Now}
}

// Code implements Provider.
func (m *Moamalat) Code() string {
	return CodeMoamalat
}

// Init generates the merchant reference and the signed checkout URL. The
// reference embeds order id, session id and a nonce so retried sessions for
// the same order never collide.
func (m *Moamalat) Init(ctx context.Context, session *models.PaymentSession) (*InitResult, error) {
	trxTime := m.now().UTC()
	reference := fmt.Sprintf("ORD%d-S%d-%d-%s",
		session.OrderID, session.ID, trxTime.Unix(), strings.Split(uuid.New().String(), "-")[0])

	// Gateway amounts are in dirhams (3-decimal minor unit).
	amount := session.Amount.Mul(decimal.NewFromInt(1000)).IntPart()
	dateTime := trxTime.Format("200601021504")

	hash, err := m.secureHash(amount, dateTime, reference)
	if err != nil {
		return nil, &models.PaymentProviderError{Code: CodeMoamalat, Err: err}
	}

	params := url.Values{}
	params.Set("MID", m.cfg.MerchantID)
	params.Set("TID", m.cfg.TerminalID)
	params.Set("AmountTrxn", fmt.Sprintf("%d", amount))
	params.Set("MerchantReference", reference)
	params.Set("TrxDateTime", dateTime)
	params.Set("SecureHash", hash)

	return &InitResult{
		Reference:   reference,
		RedirectURL: m.cfg.CheckoutURL + "?" + params.Encode(),
	}, nil
}

// Pay implements Provider. Moamalat has no programmatic direct-pay API.
func (m *Moamalat) Pay(ctx context.Context, session *models.PaymentSession) (bool, error) {
	return false, nil
}

// secureHash computes the uppercase hex HMAC-SHA256 over the canonical
// field string, keyed with the hex-decoded merchant secret.
func (m *Moamalat) secureHash(amount int64, dateTime, reference string) (string, error) {
	key, err := hex.DecodeString(m.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("malformed merchant secret: %w", err)
	}

	msg := fmt.Sprintf("Amount=%d&DateTimeLocalTrxn=%s&MerchantId=%s&MerchantReference=%s&TerminalId=%s",
		amount, dateTime, m.cfg.MerchantID, reference, m.cfg.TerminalID)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), nil
}

// VerifyWebhookHash checks the secure hash a webhook carries against the
// canonical field string the gateway signs.
func (m *Moamalat) VerifyWebhookHash(fields map[string]string, got string) (bool, error) {
	want, err := m.canonicalHash(fields)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(want), []byte(strings.ToUpper(got))), nil
}

// canonicalHash signs the webhook fields: keys sorted, joined as k=v pairs
// with &, HMAC-SHA256 under the hex-decoded merchant secret, uppercase hex.
func (m *Moamalat) canonicalHash(fields map[string]string) (string, error) {
	key, err := hex.DecodeString(m.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("malformed merchant secret: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.Join(parts, "&")))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), nil
}
