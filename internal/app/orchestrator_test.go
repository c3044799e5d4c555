package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/curbside/checkout-service/internal/domain"
	"github.com/curbside/checkout-service/pkg/eligibilityclient"
	"github.com/curbside/checkout-service/pkg/paymentclient"
	"github.com/curbside/checkout-service/pkg/stripewidget"
)

// fakeStore is an in-memory AttemptStore. Values are copied on the way in
// and out so callers cannot mutate stored state through shared pointers.
type fakeStore struct {
	mu        sync.Mutex
	attempts  map[string]domain.CheckoutAttempt
	validated map[string]domain.ValidatedAddress
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attempts:  make(map[string]domain.CheckoutAttempt),
		validated: make(map[string]domain.ValidatedAddress),
	}
}

func (s *fakeStore) SaveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = *attempt
	return nil
}

func (s *fakeStore) GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	copied := attempt
	return &copied, nil
}

func (s *fakeStore) DeleteAttempt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, id)
	delete(s.validated, id)
	return nil
}

func (s *fakeStore) SaveValidatedAddress(ctx context.Context, attemptID string, v *domain.ValidatedAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validated[attemptID] = *v
	return nil
}

func (s *fakeStore) GetValidatedAddress(ctx context.Context, attemptID string) (*domain.ValidatedAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.validated[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	copied := v
	return &copied, nil
}

func (s *fakeStore) ListAttemptIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.attempts))
	for id := range s.attempts {
		ids = append(ids, id)
	}
	return ids, nil
}

// bumpVersion simulates a newer submission landing while a response is in
// transit.
func (s *fakeStore) bumpVersion(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt := s.attempts[id]
	attempt.Version++
	s.attempts[id] = attempt
}

type fakeEligibility struct {
	checkCalls int
	resp       *eligibilityclient.CheckResponse
	err        error
	products   []domain.ServiceSelection
	onCheck    func()
}

func (f *fakeEligibility) CheckEligibility(ctx context.Context, req eligibilityclient.CheckRequest) (*eligibilityclient.CheckResponse, error) {
	f.checkCalls++
	if f.onCheck != nil {
		f.onCheck()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeEligibility) ListProducts(ctx context.Context) ([]domain.ServiceSelection, error) {
	return f.products, nil
}

type fakePayments struct {
	keyCalls     int
	sessionCalls int
	key          string
	keyErr       error
	resp         *paymentclient.SessionResponse
	err          error
}

func (f *fakePayments) GetPublishableKey(ctx context.Context) (string, error) {
	f.keyCalls++
	if f.keyErr != nil {
		return "", f.keyErr
	}
	return f.key, nil
}

func (f *fakePayments) CreateSession(ctx context.Context, req paymentclient.CreateSessionRequest) (*paymentclient.SessionResponse, error) {
	f.sessionCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeWidget struct {
	initKeys      []string
	mountCalls    int
	mounted       map[string]bool
	confirmCalls  int
	confirmParams []stripewidget.ConfirmParams
	confirmErr    error
	confirmResult *stripewidget.ConfirmResult
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{mounted: make(map[string]bool)}
}

func (f *fakeWidget) Initialize(key string) error {
	if key == "" {
		return domain.ErrKeyRetrieval
	}
	f.initKeys = append(f.initKeys, key)
	return nil
}

func (f *fakeWidget) Mount(clientSecret string) error {
	f.mountCalls++
	if len(f.initKeys) == 0 {
		return domain.ErrNotInitialized
	}
	if f.mounted[clientSecret] {
		return nil
	}
	f.mounted = map[string]bool{clientSecret: true}
	return nil
}

func (f *fakeWidget) Mounted(clientSecret string) bool {
	return f.mounted[clientSecret]
}

func (f *fakeWidget) Confirm(ctx context.Context, params stripewidget.ConfirmParams) (*stripewidget.ConfirmResult, error) {
	f.confirmCalls++
	f.confirmParams = append(f.confirmParams, params)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	if f.confirmResult != nil {
		return f.confirmResult, nil
	}
	return &stripewidget.ConfirmResult{
		TransactionID: stripewidget.IntentIDFromSecret(params.ClientSecret),
		Status:        "succeeded",
	}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
}

func (f *fakeSink) Emit(ctx context.Context, event domain.AnalyticsEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSink) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.Name)
	}
	return names
}

type fixture struct {
	orch        *Orchestrator
	store       *fakeStore
	eligibility *fakeEligibility
	payments    *fakePayments
	widget      *fakeWidget
	sink        *fakeSink
	modal       *ModalManager
}

func testSelection() domain.ServiceSelection {
	return domain.ServiceSelection{
		ID:       "svc_basic",
		Name:     "Weekly Pickup",
		Price:    1000,
		Currency: "usd",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	eligibility := &fakeEligibility{
		resp: &eligibilityclient.CheckResponse{
			InsideZone:     true,
			ValidTrashDay:  true,
			AddressID:      "42",
			Location:       domain.GeoPoint{Lat: 30.26, Lng: -97.74},
			NextServiceDay: "2026-09-08",
		},
	}
	payments := &fakePayments{
		key: "pk_settings",
		resp: &paymentclient.SessionResponse{
			ClientSecret:        "pi_123_secret_abc",
			ServiceAmount:       1000,
			AdditionalBinAmount: 0,
			TaxAmount:           80,
			Subtotal:            1000,
			Total:               1080,
			NextServiceDay:      "2026-09-08",
		},
	}

	st := newFakeStore()
	widget := newFakeWidget()
	sink := &fakeSink{}
	modal := NewModalManager(0)
	modal.sleep = func(time.Duration) {}

	orch := NewOrchestrator(st, eligibility, payments, widget, sink, modal, Options{
		CheckoutBaseURL:     "/checkout",
		ConfirmationBaseURL: "/confirmation",
	})
	orch.transition = func(context.Context) {}

	return &fixture{
		orch:        orch,
		store:       st,
		eligibility: eligibility,
		payments:    payments,
		widget:      widget,
		sink:        sink,
		modal:       modal,
	}
}

func validInput() domain.AddressInput {
	return domain.AddressInput{
		Line1:      "100 Congress Ave",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
		FirstName:  "Jamie",
		LastName:   "Rivera",
		Email:      "jamie@example.com",
		PickupDay:  domain.PickupTuesday,
		BinCount:   1,
	}
}

func TestOpen_CreatesAttemptAndEmitsAddToCart(t *testing.T) {
	f := newFixture(t)

	attempt, handle, err := f.orch.Open(context.Background(), testSelection())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.Step != domain.StepAddress {
		t.Fatalf("expected address step, got %s", attempt.Step)
	}
	if handle.AttemptID != attempt.ID {
		t.Fatalf("handle bound to wrong attempt: %s vs %s", handle.AttemptID, attempt.ID)
	}
	if _, err := f.store.GetAttempt(context.Background(), attempt.ID); err != nil {
		t.Fatalf("attempt not persisted: %v", err)
	}

	names := f.sink.names()
	if len(names) != 1 || names[0] != domain.EventAddToCart {
		t.Fatalf("expected one add_to_cart event, got %v", names)
	}
}

func TestClose_DestroysAttemptAndReleasesModal(t *testing.T) {
	f := newFixture(t)

	attempt, _, err := f.orch.Open(context.Background(), testSelection())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if err := f.orch.Close(context.Background(), attempt.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := f.store.GetAttempt(context.Background(), attempt.ID); err == nil {
		t.Fatal("expected attempt to be deleted")
	}
	if f.modal.ScrollLocked() {
		t.Fatal("expected scroll lock released")
	}
	if _, active := f.modal.Active(); active {
		t.Fatal("expected no active modal")
	}
}

func TestAcquireStep_SecondCallerRejectedWhileInFlight(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.acquireStep("chk_x", "address"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := f.orch.acquireStep("chk_x", "session"); err != domain.ErrStepInFlight {
		t.Fatalf("expected ErrStepInFlight, got %v", err)
	}
	f.orch.releaseStep("chk_x")
	if err := f.orch.acquireStep("chk_x", "session"); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestResolveSelection_EmitsViewContent(t *testing.T) {
	f := newFixture(t)
	f.eligibility.products = []domain.ServiceSelection{testSelection()}

	sel, err := f.orch.ResolveSelection(context.Background(), "svc_basic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.ID != "svc_basic" {
		t.Fatalf("unexpected selection %+v", sel)
	}

	names := f.sink.names()
	if len(names) != 1 || names[0] != domain.EventViewContent {
		t.Fatalf("expected one ViewContent event, got %v", names)
	}
}

func TestResolveSelection_UnknownProductFails(t *testing.T) {
	f := newFixture(t)
	f.eligibility.products = []domain.ServiceSelection{testSelection()}

	if _, err := f.orch.ResolveSelection(context.Background(), "svc_missing"); err == nil {
		t.Fatal("expected error for unknown product")
	}
}
