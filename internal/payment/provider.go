package payment

import (
	"context"

	"storefront-service/internal/models"
)

// Provider is the capability interface a payment gateway implements.
// Hosted-redirect gateways return false from Pay: settlement only happens
// through the asynchronous webhook.
type Provider interface {
	Code() string
	Init(ctx context.Context, session *models.PaymentSession) (*InitResult, error)
	Pay(ctx context.Context, session *models.PaymentSession) (bool, error)
}

// WebhookVerifier is implemented by providers that sign their webhook
// callbacks. Reconciliation refuses to settle a payload whose hash does not
// verify.
type WebhookVerifier interface {
	VerifyWebhookHash(fields map[string]string, got string) (bool, error)
}

// InitResult carries the opaque reference stored as provider_session_id and
// the URL the client is redirected to.
type InitResult struct {
	Reference   string
	RedirectURL string
}

// Registry maps provider codes to implementations. Populated at startup;
// adding a provider means registering a new implementation, no core changes.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own code.
func (r *Registry) Register(p Provider) {
	r.providers[p.Code()] = p
}

// Lookup resolves a provider code, failing with UnknownProviderError for
// unregistered codes.
func (r *Registry) Lookup(code string) (Provider, error) {
	p, ok := r.providers[code]
	if !ok {
		return nil, &models.UnknownProviderError{Code: code}
	}
	return p, nil
}
