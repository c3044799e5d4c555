/**
 * @description
 * This file defines the `AttemptStore` interface, the contract for persisting
 * checkout-attempt state between steps. Attempt state is short-lived by
 * design: entries carry a TTL and are cleared by natural expiry, never by an
 * explicit cleanup pass. Defining an interface decouples the funnel logic
 * from the concrete Redis implementation and makes the steps testable with
 * in-memory fakes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the checkout models.
 */

package store

import (
	"context"

	"github.com/curbside/checkout-service/internal/domain"
)

// AttemptStore defines the set of methods for persisting attempt state.
type AttemptStore interface {
	// SaveAttempt writes the attempt snapshot under its TTL key, replacing
	// any previous snapshot.
	SaveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error

	// GetAttempt loads an attempt by id. Returns domain.ErrAttemptNotFound
	// when no live entry exists (never stored, expired, or deleted).
	GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error)

	// DeleteAttempt removes an attempt and its validated-address entry.
	DeleteAttempt(ctx context.Context, id string) error

	// SaveValidatedAddress stores the most recent eligibility result for the
	// attempt, superseding any prior one.
	SaveValidatedAddress(ctx context.Context, attemptID string, v *domain.ValidatedAddress) error

	// GetValidatedAddress loads the cached eligibility result. Returns
	// domain.ErrAttemptNotFound when none is live.
	GetValidatedAddress(ctx context.Context, attemptID string) (*domain.ValidatedAddress, error)

	// ListAttemptIDs returns the ids of all live attempts, for the sweeper.
	ListAttemptIDs(ctx context.Context) ([]string, error)
}
