/**
 * @description
 * Payment-session initialization step. With a validated, eligible address in
 * place it loads the hosted-payment SDK, resolves a publishable key, creates
 * exactly one payment session, renders the order summary, and mounts the
 * payment element bound to the session's client secret.
 *
 * Failure at any point aborts initialization and leaves the attempt's
 * controls re-enabled so the user can retry. The step is serialized per
 * attempt by the in-flight guard; a retried initialization supersedes the
 * previous session rather than merging with it.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/curbside/checkout-service/internal/domain"
	"github.com/curbside/checkout-service/pkg/paymentclient"
)

// SessionResult is the outcome of a successful initialization: the live
// session and the rendered order summary.
type SessionResult struct {
	Session *domain.PaymentSession `json:"session"`
	Summary *domain.OrderSummary   `json:"summary"`
}

// InitializeSession runs the payment-session step for the attempt.
func (o *Orchestrator) InitializeSession(ctx context.Context, attemptID string) (*SessionResult, error) {
	attempt, err := o.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if err := o.acquireStep(attemptID, "session"); err != nil {
		return nil, err
	}
	defer o.releaseStep(attemptID)

	// Success is terminal; a completed attempt cannot be re-driven.
	if attempt.Step == domain.StepComplete {
		return nil, domain.ErrAttemptCompleted
	}

	// Precondition: an eligible validated address for this selection. Fail
	// fast before any network call when the context is missing.
	if attempt.Selection.ID == "" || !attempt.Validated.Eligible() {
		return nil, domain.ErrMissingContext
	}

	// Prefer a key embedded in the selection; fall back to the settings
	// endpoint. The widget's Initialize is the lazy SDK load.
	key := attempt.Selection.PublishableKey
	if key == "" {
		key, err = o.payments.GetPublishableKey(ctx)
		if err != nil {
			return nil, err
		}
	}
	if err := o.widget.Initialize(key); err != nil {
		return nil, err
	}

	version := attempt.Version
	resp, err := o.payments.CreateSession(ctx, paymentclient.CreateSessionRequest{
		ProductID:          attempt.Selection.ID,
		FirstName:          attempt.Validated.FirstName,
		LastName:           attempt.Validated.LastName,
		Email:              attempt.Validated.Email,
		AddressID:          attempt.Validated.AddressID,
		SchedulePreference: attempt.Validated.PickupDay,
		AdditionalUnits:    attempt.AdditionalBins,
		Location:           attempt.Validated.Location,
	})
	if err != nil {
		return nil, err
	}

	// Drop the response if the address was resubmitted while we waited.
	current, err := o.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		log.Printf("level=warn component=orchestrator msg=\"stale session response dropped\" attempt_id=%s response_version=%d current_version=%d", attemptID, version, current.Version)
		return nil, domain.ErrStaleResponse
	}
	attempt = current

	session := buildSession(attempt, resp)
	summary := buildOrderSummary(attempt.Selection, session, attempt.AdditionalBins)

	// The initiate-checkout signal goes out before the widget mounts.
	event := domain.NewAnalyticsEvent(domain.EventInitiateCheckout, attempt.Selection, 1+attempt.AdditionalBins)
	event.Properties = map[string]any{"total": session.Total, "tax": session.TaxAmount}
	o.analytics.Emit(ctx, event)

	if err := o.widget.Mount(session.ClientSecret); err != nil {
		return nil, err
	}

	attempt.Session = session
	attempt.Step = domain.StepConfirm
	touch(attempt)
	if err := o.repo.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to persist attempt: %w", err)
	}

	return &SessionResult{Session: session, Summary: summary}, nil
}

// buildSession maps the wire response onto the attempt's session, preferring
// server-provided amounts and deriving the sums that are absent.
func buildSession(attempt *domain.CheckoutAttempt, resp *paymentclient.SessionResponse) *domain.PaymentSession {
	serviceAmount := resp.ServiceAmount
	if serviceAmount == 0 {
		serviceAmount = attempt.Selection.Price
	}

	// Additional bins are priced proportionally to the base service.
	additionalAmount := resp.AdditionalBinAmount
	if additionalAmount == 0 && attempt.AdditionalBins > 0 {
		additionalAmount = int64(attempt.AdditionalBins) * serviceAmount
	}

	subtotal := resp.Subtotal
	if subtotal == 0 {
		subtotal = serviceAmount + additionalAmount
	}

	total := resp.Total
	if total == 0 {
		total = resp.AmountTotal
	}
	if total == 0 {
		total = subtotal + resp.TaxAmount
	}

	currency := resp.Currency
	if currency == "" {
		currency = attempt.Selection.Currency
	}

	return &domain.PaymentSession{
		ClientSecret:        resp.ClientSecret,
		ServiceAmount:       serviceAmount,
		AdditionalBinAmount: additionalAmount,
		Subtotal:            subtotal,
		TaxAmount:           resp.TaxAmount,
		Total:               total,
		Currency:            currency,
		NextServiceDate:     resp.NextServiceDate(),
	}
}
