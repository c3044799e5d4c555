/**
 * @description
 * This file contains the checkout orchestrator: the aggregate root of the
 * funnel. The `Orchestrator` sequences the three steps (address eligibility,
 * payment-session initialization, payment confirmation), carries state
 * between them on the CheckoutAttempt, and enforces the ordering invariants:
 * confirmation cannot run before a session exists, and a session cannot be
 * created before address eligibility succeeds for the address that produced
 * it.
 *
 * Key features:
 * - All cross-step state lives on the attempt, never in ambient globals.
 * - Each step kind is allowed only once in flight per attempt, enforced
 *   cooperatively through an in-flight guard (the control-disable analogue).
 * - A per-attempt submit version drops out-of-order responses, so a slow
 *   eligibility or session response can never overwrite newer state.
 *
 * @dependencies
 * - context, fmt, sync, time: Standard Go libraries.
 * - github.com/segmentio/ksuid: For attempt ids.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/eligibilityclient, pkg/paymentclient, pkg/analytics, pkg/stripewidget:
 *   External collaborators.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/curbside/checkout-service/internal/domain"
	"github.com/curbside/checkout-service/internal/store"
	"github.com/curbside/checkout-service/pkg/eligibilityclient"
	"github.com/curbside/checkout-service/pkg/paymentclient"
	"github.com/curbside/checkout-service/pkg/stripewidget"
)

// EligibilityAPI is the slice of the eligibility client the funnel uses.
type EligibilityAPI interface {
	CheckEligibility(ctx context.Context, req eligibilityclient.CheckRequest) (*eligibilityclient.CheckResponse, error)
	ListProducts(ctx context.Context) ([]domain.ServiceSelection, error)
}

// PaymentAPI is the slice of the payment backend client the funnel uses.
type PaymentAPI interface {
	GetPublishableKey(ctx context.Context) (string, error)
	CreateSession(ctx context.Context, req paymentclient.CreateSessionRequest) (*paymentclient.SessionResponse, error)
}

// PaymentWidget is the opaque hosted-payment capability: initialize with a
// key, mount an element bound to a client secret, confirm the payment.
type PaymentWidget interface {
	Initialize(key string) error
	Mount(clientSecret string) error
	Mounted(clientSecret string) bool
	Confirm(ctx context.Context, params stripewidget.ConfirmParams) (*stripewidget.ConfirmResult, error)
}

// AnalyticsSink receives fire-and-forget funnel events.
type AnalyticsSink interface {
	Emit(ctx context.Context, event domain.AnalyticsEvent)
}

// Options carries the funnel-level settings the orchestrator needs.
type Options struct {
	CheckoutBaseURL     string
	ConfirmationBaseURL string
	TransitionDelay     time.Duration
	FallbackKey         string // publishable key used when the selection embeds none and settings must not be consulted first
}

// Orchestrator provides the core business logic of the checkout funnel.
type Orchestrator struct {
	repo        store.AttemptStore
	eligibility EligibilityAPI
	payments    PaymentAPI
	widget      PaymentWidget
	analytics   AnalyticsSink
	modal       *ModalManager
	opts        Options

	// transition awaits the UI transition animation between a successful
	// eligibility check and the redirect to payment. Replaced in tests.
	transition func(ctx context.Context)

	mu       sync.Mutex
	inFlight map[string]string // attempt id -> step currently in flight
}

// NewOrchestrator creates a new checkout orchestrator.
func NewOrchestrator(repo store.AttemptStore, eligibility EligibilityAPI, payments PaymentAPI, widget PaymentWidget, sink AnalyticsSink, modal *ModalManager, opts Options) *Orchestrator {
	o := &Orchestrator{
		repo:        repo,
		eligibility: eligibility,
		payments:    payments,
		widget:      widget,
		analytics:   sink,
		modal:       modal,
		opts:        opts,
		inFlight:    make(map[string]string),
	}
	o.transition = func(ctx context.Context) {
		if opts.TransitionDelay <= 0 {
			return
		}
		select {
		case <-time.After(opts.TransitionDelay):
		case <-ctx.Done():
		}
	}
	return o
}

// Open creates a fresh checkout attempt for the selection and mounts the
// modal. Any previously open modal is closed first.
func (o *Orchestrator) Open(ctx context.Context, selection domain.ServiceSelection) (*domain.CheckoutAttempt, ModalHandle, error) {
	now := time.Now().UTC()
	attempt := &domain.CheckoutAttempt{
		ID:           "chk_" + ksuid.New().String(),
		Selection:    selection,
		Step:         domain.StepAddress,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	handle := o.modal.Open(attempt.ID, selection.Name)

	if err := o.repo.SaveAttempt(ctx, attempt); err != nil {
		o.modal.Close(handle)
		return nil, ModalHandle{}, fmt.Errorf("failed to persist attempt: %w", err)
	}

	o.analytics.Emit(ctx, domain.NewAnalyticsEvent(domain.EventAddToCart, selection, 1))
	log.Printf("level=info component=orchestrator msg=\"attempt opened\" attempt_id=%s service_id=%s", attempt.ID, selection.ID)
	return attempt, handle, nil
}

// Close tears down the modal and destroys the attempt.
func (o *Orchestrator) Close(ctx context.Context, attemptID string) error {
	o.modal.CloseByAttempt(attemptID)
	if err := o.repo.DeleteAttempt(ctx, attemptID); err != nil {
		return fmt.Errorf("failed to delete attempt %s: %w", attemptID, err)
	}
	return nil
}

// GetAttempt loads the live attempt by id.
func (o *Orchestrator) GetAttempt(ctx context.Context, attemptID string) (*domain.CheckoutAttempt, error) {
	return o.repo.GetAttempt(ctx, attemptID)
}

// ResolveSelection looks up a catalog product by id and emits the
// content-view signal. Used when the host page supplies only a product id.
func (o *Orchestrator) ResolveSelection(ctx context.Context, productID string) (*domain.ServiceSelection, error) {
	products, err := o.eligibility.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == productID {
			sel := products[i]
			if sel.PublishableKey == "" {
				sel.PublishableKey = o.opts.FallbackKey
			}
			o.analytics.Emit(ctx, domain.NewAnalyticsEvent(domain.EventViewContent, sel, 1))
			return &sel, nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
}

// acquireStep marks a step as in flight for the attempt. It fails with
// ErrStepInFlight when any step is already running for it: the cooperative
// equivalent of a disabled submit control.
func (o *Orchestrator) acquireStep(attemptID, step string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, busy := o.inFlight[attemptID]; busy {
		log.Printf("level=warn component=orchestrator msg=\"step rejected; another in flight\" attempt_id=%s in_flight=%s requested=%s", attemptID, current, step)
		return domain.ErrStepInFlight
	}
	o.inFlight[attemptID] = step
	return nil
}

// releaseStep re-enables the attempt's controls.
func (o *Orchestrator) releaseStep(attemptID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, attemptID)
}

// touch refreshes the attempt's activity timestamp before it is saved.
func touch(attempt *domain.CheckoutAttempt) {
	attempt.LastActiveAt = time.Now().UTC()
}
