/**
 * @description
 * This file defines the core domain models for the checkout-service.
 * These structs represent the entities and data transfer objects (DTOs) that flow
 * through the checkout funnel: the service being purchased, the address form input,
 * the eligibility result, the payment session, and the per-modal aggregate that
 * ties them together.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents), which
 *   avoids floating-point inaccuracies with money.
 * - Each attempt carries a monotonically increasing submit version. Responses
 *   tagged with an older version than the attempt's current one are dropped,
 *   so a slow eligibility or session response can never overwrite newer state.
 */

package domain

import (
	"time"
)

// PickupDay is the customer's preferred collection weekday.
type PickupDay string

const (
	PickupMonday    PickupDay = "monday"
	PickupTuesday   PickupDay = "tuesday"
	PickupWednesday PickupDay = "wednesday"
	PickupThursday  PickupDay = "thursday"
	PickupFriday    PickupDay = "friday"
)

// PickupDays is the fixed enumeration of accepted schedule preferences.
var PickupDays = []PickupDay{
	PickupMonday,
	PickupTuesday,
	PickupWednesday,
	PickupThursday,
	PickupFriday,
}

// Valid reports whether the value is one of the fixed weekday enumeration.
func (d PickupDay) Valid() bool {
	for _, day := range PickupDays {
		if d == day {
			return true
		}
	}
	return false
}

// BaselineBins is the number of bins included in the base price. Quantities
// above it are billed as additional units.
const BaselineBins = 1

// ServiceSelection is the product/offer the customer is purchasing. It is
// supplied by the calling page and read-only throughout the flow.
type ServiceSelection struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Price          int64  `json:"price"` // in cents
	Currency       string `json:"currency"`
	Recurring      bool   `json:"recurring,omitempty"`
	BillingPeriod  string `json:"billing_period,omitempty"` // e.g. 'month' when recurring
	PublishableKey string `json:"publishable_key,omitempty"`
}

// AddressInput is the address form as submitted, including the contact fields
// and schedule preference collected alongside it. It is created from form
// fields at submit time and never persisted beyond the attempt.
type AddressInput struct {
	Line1          string    `json:"line1" validate:"required"`
	Line2          string    `json:"line2,omitempty"`
	City           string    `json:"city" validate:"required"`
	State          string    `json:"state" validate:"required"`
	PostalCode     string    `json:"postal_code" validate:"required"`
	Country        string    `json:"country"`
	FirstName      string    `json:"first_name" validate:"required"`
	LastName       string    `json:"last_name" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	PickupDay      PickupDay `json:"pickup_day" validate:"required,pickupday"`
	MarketingOptIn bool      `json:"marketing_opt_in"`
	BinCount       int       `json:"bin_count,omitempty"` // user-editable quantity; baseline included in base price
}

// GeoPoint is a geographic coordinate returned by the eligibility geocoder.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidatedAddress is the result of a successful eligibility check. Produced
// exactly once per successful check; superseded entirely when the form is
// edited and resubmitted.
type ValidatedAddress struct {
	AddressID         string     `json:"address_id"`
	Location          GeoPoint   `json:"location"`
	InsideServiceZone bool       `json:"inside_service_zone"`
	ValidPickupDay    bool       `json:"valid_pickup_day"`
	NextServiceDate   *time.Time `json:"next_service_date,omitempty"`

	// Contact details cached for the confirmation step's billing details.
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	PickupDay PickupDay `json:"pickup_day"`
}

// Eligible reports whether this address can proceed to payment.
func (v *ValidatedAddress) Eligible() bool {
	return v != nil && v.InsideServiceZone && v.ValidPickupDay
}

// PaymentSession holds the provider session created for an attempt: the client
// secret the hosted widget binds to and the itemized amount breakdown. Exactly
// one live session per modal instance; a retried initialization replaces it.
type PaymentSession struct {
	ClientSecret        string     `json:"client_secret"`
	ServiceAmount       int64      `json:"service_amount"`        // in cents
	AdditionalBinAmount int64      `json:"additional_bin_amount"` // in cents
	Subtotal            int64      `json:"subtotal"`              // in cents
	TaxAmount           int64      `json:"tax_amount"`            // in cents
	Total               int64      `json:"total"`                 // in cents
	Currency            string     `json:"currency"`
	NextServiceDate     *time.Time `json:"next_service_date,omitempty"`
}

// Step is the cursor over the checkout state machine.
type Step string

const (
	StepAddress  Step = "address"
	StepPayment  Step = "payment"
	StepConfirm  Step = "confirm"
	StepComplete Step = "complete"
)

// CheckoutAttempt is the per-modal aggregate. It is created when the modal
// opens and destroyed when the modal closes or checkout completes. All
// cross-step state lives here rather than in ambient globals.
type CheckoutAttempt struct {
	ID             string            `json:"id"` // 'chk_' + ksuid
	Selection      ServiceSelection  `json:"selection"`
	Address        *AddressInput     `json:"address,omitempty"`
	Validated      *ValidatedAddress `json:"validated,omitempty"`
	Session        *PaymentSession   `json:"session,omitempty"`
	AdditionalBins int               `json:"additional_bins"`
	Step           Step              `json:"step"`
	Version        uint64            `json:"version"` // submit sequence guard
	CreatedAt      time.Time         `json:"created_at"`
	LastActiveAt   time.Time         `json:"last_active_at"`
}

// OrderSummary is the rendered amount breakdown shown before payment.
type OrderSummary struct {
	ServiceName         string     `json:"service_name"`
	ServiceAmount       string     `json:"service_amount"`
	AdditionalBins      int        `json:"additional_bins"`
	AdditionalBinAmount string     `json:"additional_bin_amount"`
	Subtotal            string     `json:"subtotal"`
	Tax                 string     `json:"tax"`
	Total               string     `json:"total"`
	Currency            string     `json:"currency"`
	NextServiceDate     *time.Time `json:"next_service_date,omitempty"`
}

// ConfirmationResult reports the outcome of a payment confirmation.
type ConfirmationResult struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"` // in cents
	Currency      string `json:"currency"`
	ReturnURL     string `json:"return_url"`
}
