/**
 * @description
 * This package adapts the Stripe SDK into the opaque hosted-payment
 * capability the checkout funnel depends on. The funnel only ever needs
 * three things from it: initialize with a publishable key, mount an element
 * bound to a client secret, and confirm the payment. Everything else about
 * the provider stays behind this boundary.
 *
 * Key features:
 * - Lazy one-time SDK client construction (the script-load analogue).
 * - Idempotent mounting: re-mounting the same client secret is a no-op, so a
 *   retried initialization can never produce two payment containers.
 * - Confirm maps provider-reported failures onto PaymentDeclinedError.
 *
 * @dependencies
 * - github.com/stripe/stripe-go/v79: The Stripe SDK.
 * - internal/domain for the error taxonomy.
 */
package stripewidget

import (
	"context"
	"errors"
	"strings"
	"sync"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/curbside/checkout-service/internal/domain"
)

// ConfirmParams carries everything the confirm operation needs.
type ConfirmParams struct {
	ClientSecret string
	BillingName  string
	BillingEmail string
	ReturnURL    string
}

// ConfirmResult reports a successful confirmation.
type ConfirmResult struct {
	TransactionID string
	Status        string
}

// Widget is the Stripe-backed hosted payment capability.
type Widget struct {
	mu      sync.Mutex
	loadSDK sync.Once
	api     *client.API
	key     string
	mounted map[string]bool // by client secret
}

// New returns an unloaded widget. The SDK client is constructed on first
// Initialize call.
func New() *Widget {
	return &Widget{mounted: make(map[string]bool)}
}

// Initialize loads the SDK if needed and binds it to the publishable key.
// Calling it again with the same key is a no-op; a different key replaces the
// client, superseding any prior session.
func (w *Widget) Initialize(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrKeyRetrieval
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.loadSDK.Do(func() {
		w.api = client.New(key, nil)
		w.key = key
	})
	if w.key != key {
		w.api = client.New(key, nil)
		w.key = key
		w.mounted = make(map[string]bool)
	}
	return nil
}

// Mount binds a payment element to the client secret. Repeated calls for the
// same secret are idempotent; mounting a new secret replaces the old element.
func (w *Widget) Mount(clientSecret string) error {
	if strings.TrimSpace(clientSecret) == "" {
		return domain.ErrSessionSecret
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.api == nil {
		return domain.ErrNotInitialized
	}
	if w.mounted[clientSecret] {
		return nil
	}
	// One live element per widget: a new secret supersedes the previous mount.
	w.mounted = map[string]bool{clientSecret: true}
	return nil
}

// Mounted reports whether an element is bound to the given client secret.
func (w *Widget) Mounted(clientSecret string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mounted[clientSecret]
}

// Confirm submits the mounted payment. The provider performs the redirect to
// the return URL; this method only reports the outcome.
func (w *Widget) Confirm(ctx context.Context, params ConfirmParams) (*ConfirmResult, error) {
	w.mu.Lock()
	api := w.api
	mounted := w.mounted[params.ClientSecret]
	w.mu.Unlock()

	if api == nil || !mounted {
		return nil, domain.ErrNotInitialized
	}

	intentID := IntentIDFromSecret(params.ClientSecret)
	if intentID == "" {
		return nil, domain.ErrSessionSecret
	}

	confirmParams := &stripe.PaymentIntentConfirmParams{
		ReturnURL: stripe.String(params.ReturnURL),
	}
	// PaymentIntentConfirmParams has no ClientSecret field in stripe-go v79;
	// send the same client_secret form value via the Params extras mechanism.
	confirmParams.AddExtra("client_secret", params.ClientSecret)
	if params.BillingEmail != "" {
		confirmParams.ReceiptEmail = stripe.String(params.BillingEmail)
	}
	confirmParams.Context = ctx

	intent, err := api.PaymentIntents.Confirm(intentID, confirmParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &domain.PaymentDeclinedError{Code: string(stripeErr.Code), Message: stripeErr.Msg}
		}
		return nil, &domain.NetworkError{Op: "confirm", Err: err}
	}

	return &ConfirmResult{
		TransactionID: intent.ID,
		Status:        string(intent.Status),
	}, nil
}

// IntentIDFromSecret derives the transaction identifier from a client secret
// of the form 'pi_123_secret_abc'.
func IntentIDFromSecret(clientSecret string) string {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found {
		return ""
	}
	return id
}
