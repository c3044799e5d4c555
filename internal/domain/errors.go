/**
 * @description
 * This file defines the error taxonomy for the checkout funnel. Every failure
 * mode a step can report is a distinct type or sentinel so callers can branch
 * with errors.Is / errors.As instead of string matching.
 *
 * Propagation policy:
 * - Validation and precondition errors are resolved locally; they never reach
 *   the network.
 * - Network and server errors are surfaced to the user-visible feedback area
 *   AND returned so the caller can react.
 * - Payment-provider confirmation errors are always re-surfaced, never
 *   silently retried.
 * No error is fatal to the attempt: the modal stays open and controls are
 * re-enabled so the user can correct and retry. Successful payment is the one
 * terminal state.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for flag-style failures.
var (
	// ErrOutOfServiceArea: the address geocoded outside the service boundary.
	// Terminal for this address; a new address must be submitted.
	ErrOutOfServiceArea = errors.New("address is outside the service area")

	// ErrScheduleUnavailable: the requested pickup day is not served at this
	// address. Terminal for this address.
	ErrScheduleUnavailable = errors.New("requested pickup day is not available for this address")

	// ErrMissingContext: payment-session initialization was invoked without a
	// validated address or service selection in place.
	ErrMissingContext = errors.New("checkout context is missing a validated address")

	// ErrKeyRetrieval: no publishable key was embedded in the selection and
	// the settings endpoint did not yield one.
	ErrKeyRetrieval = errors.New("unable to obtain a payment publishable key")

	// ErrSessionSecret: the session endpoint answered without a client secret.
	ErrSessionSecret = errors.New("payment session response is missing a client secret")

	// ErrNotInitialized: confirmation was attempted before a session exists
	// and the widget is mounted.
	ErrNotInitialized = errors.New("payment has not been initialized")

	// ErrAttemptNotFound: no live attempt matches the supplied handle.
	ErrAttemptNotFound = errors.New("checkout attempt not found")

	// ErrProductNotFound: the requested product id is not in the catalog.
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrAttemptCompleted: payment already succeeded for this attempt;
	// success is terminal and no further submit is possible.
	ErrAttemptCompleted = errors.New("checkout attempt already completed")

	// ErrStepInFlight: a step of the same kind is already in flight for this
	// attempt; callers must wait for it to resolve.
	ErrStepInFlight = errors.New("a request for this step is already in flight")

	// ErrStaleResponse: a response arrived for a superseded submit version
	// and was dropped rather than applied.
	ErrStaleResponse = errors.New("response superseded by a newer submission")
)

// ValidationError reports missing or invalid user input. It is produced
// before any network call and resolved inline.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(e.Fields, ", "))
}

// NetworkError wraps a transport failure or a non-2xx response that carried
// no usable body.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerRejection is a non-2xx response that included a server-supplied
// message; the message is shown to the user verbatim.
type ServerRejection struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerRejection) Error() string {
	return fmt.Sprintf("%s: server rejected request (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// PaymentDeclinedError is a failure reported by the payment provider during
// confirmation (card declined, authentication failed, and so on).
type PaymentDeclinedError struct {
	Code    string
	Message string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "payment was declined"
}

// UserMessage maps any funnel error to the human-readable text shown in the
// feedback area. Server-supplied messages win; everything else gets a
// category-appropriate generic message.
func UserMessage(err error) string {
	var rejection *ServerRejection
	if errors.As(err, &rejection) && rejection.Message != "" {
		return rejection.Message
	}
	var declined *PaymentDeclinedError
	if errors.As(err, &declined) {
		return declined.Error()
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	switch {
	case errors.Is(err, ErrOutOfServiceArea):
		return "Sorry, we don't service that address yet."
	case errors.Is(err, ErrScheduleUnavailable):
		return "That pickup day isn't available for your address."
	case errors.Is(err, ErrMissingContext):
		return "Please validate your address before continuing to payment."
	case errors.Is(err, ErrNotInitialized):
		return "Payment isn't ready yet. Please complete the previous step."
	default:
		return "Something went wrong. Please try again."
	}
}
