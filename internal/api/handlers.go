/**
 * @description
 * This file contains the HTTP handlers for the checkout-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the checkout orchestrator, and writing the HTTP response. They act as
 * the bridge between the web layer and the funnel logic.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For orchestration logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curbside/checkout-service/internal/app"
	"github.com/curbside/checkout-service/internal/domain"
)

// CheckoutHandlers holds the orchestrator and the handle-token secret that
// handlers use.
type CheckoutHandlers struct {
	orch         *app.Orchestrator
	handleSecret string
}

// NewCheckoutHandlers creates a new instance of CheckoutHandlers.
func NewCheckoutHandlers(orch *app.Orchestrator, handleSecret string) *CheckoutHandlers {
	return &CheckoutHandlers{orch: orch, handleSecret: handleSecret}
}

// openCheckoutRequest starts a checkout for one of the catalog's services.
type openCheckoutRequest struct {
	ProductID string `json:"product_id"`
}

// openCheckoutResponse mirrors what the host page needs to drive the modal:
// the attempt, its current step, and the handle token for subsequent calls.
type openCheckoutResponse struct {
	AttemptID   string                  `json:"attempt_id"`
	Step        string                  `json:"step"`
	Selection   domain.ServiceSelection `json:"selection"`
	HandleToken string                  `json:"handle_token"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// OpenCheckoutHandler resolves the selected service and opens a new attempt.
func (h *CheckoutHandlers) OpenCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req openCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "product_id is required", nil)
		return
	}

	selection, err := h.orch.ResolveSelection(r.Context(), req.ProductID)
	if err != nil {
		h.respondError(w, "open", err)
		return
	}

	attempt, handle, err := h.orch.Open(r.Context(), *selection)
	if err != nil {
		h.respondError(w, "open", err)
		return
	}

	token, err := MintHandleToken(h.handleSecret, attempt.ID, handle.ID)
	if err != nil {
		log.Printf("level=error component=api msg=\"handle token mint failed\" attempt_id=%s err=%v", attempt.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to open checkout", nil)
		return
	}

	h.writeJSON(w, http.StatusCreated, openCheckoutResponse{
		AttemptID:   attempt.ID,
		Step:        string(attempt.Step),
		Selection:   attempt.Selection,
		HandleToken: token,
	})
}

// SubmitAddressHandler runs the address-validation and eligibility step.
func (h *CheckoutHandlers) SubmitAddressHandler(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	var input domain.AddressInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	result, err := h.orch.SubmitAddress(r.Context(), attemptID, input)
	if err != nil {
		h.respondError(w, "address", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// InitializeSessionHandler runs the payment-session step.
func (h *CheckoutHandlers) InitializeSessionHandler(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	result, err := h.orch.InitializeSession(r.Context(), attemptID)
	if err != nil {
		h.respondError(w, "session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ConfirmPaymentHandler submits the mounted payment.
func (h *CheckoutHandlers) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	result, err := h.orch.ConfirmPayment(r.Context(), attemptID)
	if err != nil {
		h.respondError(w, "confirm", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetAttemptHandler returns the attempt's current state, used by the host
// page to resume after a reload.
func (h *CheckoutHandlers) GetAttemptHandler(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	attempt, err := h.orch.GetAttempt(r.Context(), attemptID)
	if err != nil {
		h.respondError(w, "get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, attempt)
}

// CloseCheckoutHandler tears the attempt down.
func (h *CheckoutHandlers) CloseCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	if err := h.orch.Close(r.Context(), attemptID); err != nil {
		h.respondError(w, "close", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondError maps funnel errors onto HTTP statuses. The response body
// carries the user-facing message, never internal detail.
func (h *CheckoutHandlers) respondError(w http.ResponseWriter, op string, err error) {
	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		h.writeError(w, http.StatusUnprocessableEntity, domain.UserMessage(err), invalid.Fields)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound), errors.Is(err, domain.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAttemptCompleted):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStepInFlight):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStaleResponse):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOutOfServiceArea), errors.Is(err, domain.ErrScheduleUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrMissingContext), errors.Is(err, domain.ErrNotInitialized):
		status = http.StatusPreconditionFailed
	default:
		var rejection *domain.ServerRejection
		var declined *domain.PaymentDeclinedError
		if errors.As(err, &rejection) {
			status = http.StatusBadGateway
		} else if errors.As(err, &declined) {
			status = http.StatusPaymentRequired
		}
	}

	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api msg=\"unhandled funnel error\" op=%s err=%v", op, err)
	}
	h.writeError(w, status, domain.UserMessage(err), nil)
}

// writeJSON is a helper to write a JSON response with a given status code.
func (h *CheckoutHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

// writeError is a helper to write a JSON error response.
func (h *CheckoutHandlers) writeError(w http.ResponseWriter, status int, message string, fields []string) {
	h.writeJSON(w, status, errorResponse{Error: message, Fields: fields})
}
