/**
 * @description
 * Payment confirmation step. Requires the widget to be initialized and an
 * element mounted to the session's client secret. The confirmation control
 * follows idle -> processing -> (success | error); an error returns the
 * control to idle so the user can retry, success is terminal for the modal
 * instance.
 */

package app

import (
	"context"
	"log"
	"net/url"

	"github.com/curbside/checkout-service/internal/domain"
	"github.com/curbside/checkout-service/pkg/stripewidget"
)

// ConfirmPayment submits the mounted payment for the attempt.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, attemptID string) (*domain.ConfirmationResult, error) {
	attempt, err := o.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	// The processing state: the submit control stays disabled until this
	// call resolves.
	if err := o.acquireStep(attemptID, "confirm"); err != nil {
		return nil, err
	}
	defer o.releaseStep(attemptID)

	if attempt.Step == domain.StepComplete {
		return nil, domain.ErrAttemptCompleted
	}
	if attempt.Session == nil || attempt.Session.ClientSecret == "" || !o.widget.Mounted(attempt.Session.ClientSecret) {
		return nil, domain.ErrNotInitialized
	}

	// Billing details: full name from the contact fields, email from the
	// previously cached validated-address data.
	billing, err := o.repo.GetValidatedAddress(ctx, attemptID)
	if err != nil {
		billing = attempt.Validated
	}
	if billing == nil {
		return nil, domain.ErrNotInitialized
	}

	returnURL := o.confirmationReturnURL(attempt)
	result, err := o.widget.Confirm(ctx, stripewidget.ConfirmParams{
		ClientSecret: attempt.Session.ClientSecret,
		BillingName:  billing.FirstName + " " + billing.LastName,
		BillingEmail: billing.Email,
		ReturnURL:    returnURL,
	})
	if err != nil {
		// Error transitions the control back to idle; the failure is
		// surfaced to the caller, never swallowed.
		log.Printf("level=warn component=orchestrator msg=\"confirmation failed\" attempt_id=%s err=%v", attemptID, err)
		return nil, err
	}

	transactionID := result.TransactionID
	if transactionID == "" {
		transactionID = stripewidget.IntentIDFromSecret(attempt.Session.ClientSecret)
	}

	event := domain.NewAnalyticsEvent(domain.EventPurchase, attempt.Selection, 1+attempt.AdditionalBins)
	event.Properties = map[string]any{
		"transaction_id": transactionID,
		"value":          attempt.Session.Total,
		"currency":       attempt.Session.Currency,
		"tax":            attempt.Session.TaxAmount,
	}
	o.analytics.Emit(ctx, event)

	attempt.Step = domain.StepComplete
	touch(attempt)
	if err := o.repo.SaveAttempt(ctx, attempt); err != nil {
		// Payment already succeeded; the terminal state loss is logged but
		// the success is still reported to the caller.
		log.Printf("level=error component=orchestrator msg=\"failed to persist completed attempt\" attempt_id=%s err=%v", attemptID, err)
	}

	log.Printf("level=info component=orchestrator msg=\"payment confirmed\" attempt_id=%s transaction_id=%s amount=%d", attemptID, transactionID, attempt.Session.Total)
	return &domain.ConfirmationResult{
		TransactionID: transactionID,
		Amount:        attempt.Session.Total,
		Currency:      attempt.Session.Currency,
		ReturnURL:     returnURL,
	}, nil
}

// confirmationReturnURL builds the post-payment redirect target, embedding
// the next service date when it is known.
func (o *Orchestrator) confirmationReturnURL(attempt *domain.CheckoutAttempt) string {
	base := o.opts.ConfirmationBaseURL
	if attempt.Session == nil || attempt.Session.NextServiceDate == nil {
		return base
	}
	params := url.Values{}
	params.Set("next_service_day", attempt.Session.NextServiceDate.Format("2006-01-02"))
	return base + "?" + params.Encode()
}
