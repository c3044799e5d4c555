package app

import (
	"context"
	"errors"
	"testing"

	"github.com/curbside/checkout-service/internal/domain"
)

func validatedAttempt(t *testing.T, f *fixture) *domain.CheckoutAttempt {
	t.Helper()
	attempt := openAttempt(t, f)
	if _, err := f.orch.SubmitAddress(context.Background(), attempt.ID, validInput()); err != nil {
		t.Fatalf("address submit failed: %v", err)
	}
	reloaded, err := f.store.GetAttempt(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	return reloaded
}

func TestInitializeSession_MissingContextFailsFast(t *testing.T) {
	f := newFixture(t)
	attempt := openAttempt(t, f)

	_, err := f.orch.InitializeSession(context.Background(), attempt.ID)
	if !errors.Is(err, domain.ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext, got %v", err)
	}
	if f.payments.sessionCalls != 0 || f.payments.keyCalls != 0 {
		t.Fatalf("expected zero network calls, got key=%d session=%d", f.payments.keyCalls, f.payments.sessionCalls)
	}
}

func TestInitializeSession_RendersBreakdownAndMountsOnce(t *testing.T) {
	f := newFixture(t)
	attempt := validatedAttempt(t, f)

	result, err := f.orch.InitializeSession(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Total != "$10.80" {
		t.Fatalf("expected total $10.80, got %q", result.Summary.Total)
	}
	if result.Summary.Tax != "$0.80" {
		t.Fatalf("expected tax $0.80, got %q", result.Summary.Tax)
	}
	if result.Session.ClientSecret != "pi_123_secret_abc" {
		t.Fatalf("unexpected client secret %q", result.Session.ClientSecret)
	}
	if len(f.widget.mounted) != 1 || !f.widget.Mounted("pi_123_secret_abc") {
		t.Fatalf("expected exactly one mounted element, got %v", f.widget.mounted)
	}

	reloaded, _ := f.store.GetAttempt(context.Background(), attempt.ID)
	if reloaded.Step != domain.StepConfirm {
		t.Fatalf("expected confirm step, got %s", reloaded.Step)
	}
}

func TestInitializeSession_RepeatedCallsKeepOneContainer(t *testing.T) {
	f := newFixture(t)
	attempt := validatedAttempt(t, f)

	if _, err := f.orch.InitializeSession(context.Background(), attempt.ID); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if _, err := f.orch.InitializeSession(context.Background(), attempt.ID); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if len(f.widget.mounted) != 1 {
		t.Fatalf("expected one payment container, got %d", len(f.widget.mounted))
	}
}

func TestInitializeSession_SelectionKeySkipsSettingsEndpoint(t *testing.T) {
	f := newFixture(t)
	attempt := openAttempt(t, f)

	// Embed a key, then validate.
	stored, _ := f.store.GetAttempt(context.Background(), attempt.ID)
	stored.Selection.PublishableKey = "pk_embedded"
	if err := f.store.SaveAttempt(context.Background(), stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := f.orch.SubmitAddress(context.Background(), attempt.ID, validInput()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := f.orch.InitializeSession(context.Background(), attempt.ID); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if f.payments.keyCalls != 0 {
		t.Fatalf("expected settings endpoint untouched, got %d calls", f.payments.keyCalls)
	}
	if len(f.widget.initKeys) == 0 || f.widget.initKeys[0] != "pk_embedded" {
		t.Fatalf("expected widget initialized with embedded key, got %v", f.widget.initKeys)
	}
}

func TestInitializeSession_KeyRetrievalFailureAborts(t *testing.T) {
	f := newFixture(t)
	attempt := validatedAttempt(t, f)

	f.payments.keyErr = domain.ErrKeyRetrieval
	_, err := f.orch.InitializeSession(context.Background(), attempt.ID)
	if !errors.Is(err, domain.ErrKeyRetrieval) {
		t.Fatalf("expected ErrKeyRetrieval, got %v", err)
	}
	if f.payments.sessionCalls != 0 {
		t.Fatalf("expected no session call after key failure, got %d", f.payments.sessionCalls)
	}
}

func TestInitializeSession_ServerRejectionAllowsRetry(t *testing.T) {
	f := newFixture(t)
	attempt := validatedAttempt(t, f)

	f.payments.err = &domain.ServerRejection{Op: "payment", StatusCode: 409, Message: "address already subscribed"}
	_, err := f.orch.InitializeSession(context.Background(), attempt.ID)
	var rejection *domain.ServerRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected ServerRejection, got %v", err)
	}

	f.payments.err = nil
	if _, err := f.orch.InitializeSession(context.Background(), attempt.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if f.payments.sessionCalls != 2 {
		t.Fatalf("expected 2 session calls, got %d", f.payments.sessionCalls)
	}
}

func TestInitializeSession_EmitsInitiateCheckoutWithTotal(t *testing.T) {
	f := newFixture(t)
	attempt := validatedAttempt(t, f)

	if _, err := f.orch.InitializeSession(context.Background(), attempt.ID); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	var found bool
	for _, e := range f.sink.events {
		if e.Name == domain.EventInitiateCheckout {
			found = true
			if e.Properties["total"] != int64(1080) {
				t.Fatalf("expected total 1080 on event, got %v", e.Properties["total"])
			}
		}
	}
	if !found {
		t.Fatalf("expected initiate_checkout event, got %v", f.sink.names())
	}
}

func TestInitializeSession_DerivesMissingAmounts(t *testing.T) {
	f := newFixture(t)
	attempt := openAttempt(t, f)

	input := validInput()
	input.BinCount = 2
	if _, err := f.orch.SubmitAddress(context.Background(), attempt.ID, input); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Server supplies only the secret and tax; everything else is derived.
	f.payments.resp.ServiceAmount = 0
	f.payments.resp.AdditionalBinAmount = 0
	f.payments.resp.Subtotal = 0
	f.payments.resp.Total = 0
	f.payments.resp.AmountTotal = 0
	f.payments.resp.TaxAmount = 160

	result, err := f.orch.InitializeSession(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if result.Session.ServiceAmount != 1000 {
		t.Fatalf("expected derived service amount 1000, got %d", result.Session.ServiceAmount)
	}
	if result.Session.AdditionalBinAmount != 1000 {
		t.Fatalf("expected proportional additional amount 1000, got %d", result.Session.AdditionalBinAmount)
	}
	if result.Session.Subtotal != 2000 {
		t.Fatalf("expected derived subtotal 2000, got %d", result.Session.Subtotal)
	}
	if result.Session.Total != 2160 {
		t.Fatalf("expected derived total 2160, got %d", result.Session.Total)
	}
	if result.Summary.Total != "$21.60" {
		t.Fatalf("expected summary total $21.60, got %q", result.Summary.Total)
	}
}
