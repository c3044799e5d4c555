package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/curbside/checkout-service/internal/app"
	"github.com/curbside/checkout-service/internal/domain"
	"github.com/curbside/checkout-service/pkg/eligibilityclient"
	"github.com/curbside/checkout-service/pkg/paymentclient"
	"github.com/curbside/checkout-service/pkg/stripewidget"
)

// memStore is an in-memory AttemptStore for exercising the HTTP surface.
type memStore struct {
	attempts  map[string]domain.CheckoutAttempt
	validated map[string]domain.ValidatedAddress
}

func newMemStore() *memStore {
	return &memStore{
		attempts:  make(map[string]domain.CheckoutAttempt),
		validated: make(map[string]domain.ValidatedAddress),
	}
}

func (s *memStore) SaveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	s.attempts[attempt.ID] = *attempt
	return nil
}

func (s *memStore) GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error) {
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	copied := attempt
	return &copied, nil
}

func (s *memStore) DeleteAttempt(ctx context.Context, id string) error {
	delete(s.attempts, id)
	delete(s.validated, id)
	return nil
}

func (s *memStore) SaveValidatedAddress(ctx context.Context, attemptID string, v *domain.ValidatedAddress) error {
	s.validated[attemptID] = *v
	return nil
}

func (s *memStore) GetValidatedAddress(ctx context.Context, attemptID string) (*domain.ValidatedAddress, error) {
	v, ok := s.validated[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	copied := v
	return &copied, nil
}

func (s *memStore) ListAttemptIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.attempts))
	for id := range s.attempts {
		ids = append(ids, id)
	}
	return ids, nil
}

type stubEligibility struct{}

func (stubEligibility) CheckEligibility(ctx context.Context, req eligibilityclient.CheckRequest) (*eligibilityclient.CheckResponse, error) {
	return &eligibilityclient.CheckResponse{
		InsideZone:     true,
		ValidTrashDay:  true,
		AddressID:      "addr-7",
		NextServiceDay: "2026-09-08",
	}, nil
}

func (stubEligibility) ListProducts(ctx context.Context) ([]domain.ServiceSelection, error) {
	return []domain.ServiceSelection{
		{ID: "svc_basic", Name: "Weekly Pickup", Price: 1000, Currency: "usd"},
	}, nil
}

type stubPayments struct{}

func (stubPayments) GetPublishableKey(ctx context.Context) (string, error) {
	return "pk_test", nil
}

func (stubPayments) CreateSession(ctx context.Context, req paymentclient.CreateSessionRequest) (*paymentclient.SessionResponse, error) {
	return &paymentclient.SessionResponse{
		ClientSecret:  "pi_7_secret_x",
		ServiceAmount: 1000,
		TaxAmount:     80,
		Subtotal:      1000,
		Total:         1080,
	}, nil
}

type stubWidget struct {
	initialized bool
	mountedKey  string
}

func (w *stubWidget) Initialize(key string) error {
	w.initialized = true
	return nil
}

func (w *stubWidget) Mount(clientSecret string) error {
	w.mountedKey = clientSecret
	return nil
}

func (w *stubWidget) Mounted(clientSecret string) bool {
	return w.mountedKey == clientSecret
}

func (w *stubWidget) Confirm(ctx context.Context, params stripewidget.ConfirmParams) (*stripewidget.ConfirmResult, error) {
	return &stripewidget.ConfirmResult{TransactionID: "pi_7", Status: "succeeded"}, nil
}

type stubSink struct{}

func (stubSink) Emit(ctx context.Context, event domain.AnalyticsEvent) {}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	orch := app.NewOrchestrator(
		newMemStore(),
		stubEligibility{},
		stubPayments{},
		&stubWidget{},
		stubSink{},
		app.NewModalManager(0),
		app.Options{CheckoutBaseURL: "/checkout", ConfirmationBaseURL: "/confirmation"},
	)
	handlers := NewCheckoutHandlers(orch, testSecret)
	return CheckoutRoutes(handlers, testSecret, 30*time.Second)
}

func openCheckout(t *testing.T, router http.Handler) openCheckoutResponse {
	t.Helper()
	body := bytes.NewBufferString(`{"product_id":"svc_basic"}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp openCheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp
}

func stepRequest(t *testing.T, router http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func addressBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(domain.AddressInput{
		Line1:      "100 Congress Ave",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
		FirstName:  "Jamie",
		LastName:   "Rivera",
		Email:      "jamie@example.com",
		PickupDay:  domain.PickupTuesday,
		BinCount:   1,
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return body
}

func TestOpenCheckout_ReturnsHandleToken(t *testing.T) {
	router := newTestServer(t)
	resp := openCheckout(t, router)

	if resp.AttemptID == "" || resp.HandleToken == "" {
		t.Fatalf("expected attempt id and handle token, got %+v", resp)
	}
	if resp.Step != string(domain.StepAddress) {
		t.Fatalf("expected address step, got %q", resp.Step)
	}
	if resp.Selection.ID != "svc_basic" {
		t.Fatalf("unexpected selection %+v", resp.Selection)
	}
}

func TestOpenCheckout_UnknownProduct(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"product_id":"svc_nope"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutFlow_EndToEnd(t *testing.T) {
	router := newTestServer(t)
	opened := openCheckout(t, router)
	base := "/checkout/" + opened.AttemptID

	rec := stepRequest(t, router, http.MethodPost, base+"/address", opened.HandleToken, addressBody(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("address step: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var address struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&address); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if address.RedirectURL == "" {
		t.Fatalf("expected a redirect url")
	}

	rec = stepRequest(t, router, http.MethodPost, base+"/session", opened.HandleToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session step: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		Summary struct {
			Total string `json:"total"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if session.Summary.Total != "$10.80" {
		t.Fatalf("expected total $10.80, got %q", session.Summary.Total)
	}

	rec = stepRequest(t, router, http.MethodPost, base+"/confirm", opened.HandleToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm step: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var confirmation domain.ConfirmationResult
	if err := json.NewDecoder(rec.Body).Decode(&confirmation); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if confirmation.TransactionID != "pi_7" {
		t.Fatalf("expected transaction pi_7, got %q", confirmation.TransactionID)
	}
}

func TestSubmitAddress_ValidationFailureListsFields(t *testing.T) {
	router := newTestServer(t)
	opened := openCheckout(t, router)

	body, _ := json.Marshal(domain.AddressInput{City: "Austin"})
	rec := stepRequest(t, router, http.MethodPost, "/checkout/"+opened.AttemptID+"/address", opened.HandleToken, body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Fields) == 0 {
		t.Fatalf("expected offending fields in response")
	}
}

func TestInitializeSession_WithoutAddressIsPreconditionFailure(t *testing.T) {
	router := newTestServer(t)
	opened := openCheckout(t, router)

	rec := stepRequest(t, router, http.MethodPost, "/checkout/"+opened.AttemptID+"/session", opened.HandleToken, nil)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCloseCheckout_RemovesAttempt(t *testing.T) {
	router := newTestServer(t)
	opened := openCheckout(t, router)
	base := "/checkout/" + opened.AttemptID

	rec := stepRequest(t, router, http.MethodDelete, base, opened.HandleToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = stepRequest(t, router, http.MethodGet, base, opened.HandleToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rec.Code)
	}
}
