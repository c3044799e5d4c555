/**
 * @description
 * Address eligibility step. Validates the address form locally, issues
 * exactly one eligibility request on valid input, and maps the result onto
 * the funnel's error taxonomy. On success it stores the ValidatedAddress,
 * emits the address-entered signal, awaits the transition animation, and
 * hands off to the payment step through a redirect URL carrying the
 * identifiers the next step needs.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/curbside/checkout-service/internal/domain"
	"github.com/curbside/checkout-service/pkg/eligibilityclient"
)

// validate is a singleton instance of the validator.
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Register custom validation functions
	validate.RegisterValidation("pickupday", validatePickupDay)
}

// validatePickupDay implements validator.Func for the fixed weekday enumeration.
func validatePickupDay(fl validator.FieldLevel) bool {
	return domain.PickupDay(fl.Field().String()).Valid()
}

// AddressResult is the outcome of a successful eligibility check.
type AddressResult struct {
	Validated   *domain.ValidatedAddress `json:"validated"`
	RedirectURL string                   `json:"redirect_url"`
}

// SubmitAddress runs the eligibility step for the attempt. Invalid input is
// rejected before any network call; the in-flight guard disables duplicate
// submissions for the duration of the request.
func (o *Orchestrator) SubmitAddress(ctx context.Context, attemptID string, input domain.AddressInput) (*AddressResult, error) {
	attempt, err := o.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if err := o.acquireStep(attemptID, "address"); err != nil {
		return nil, err
	}
	defer o.releaseStep(attemptID)

	// Success is terminal; a completed attempt cannot be re-driven.
	if attempt.Step == domain.StepComplete {
		return nil, domain.ErrAttemptCompleted
	}

	if input.Country == "" {
		input.Country = "US"
	}
	if err := validateAddressInput(input); err != nil {
		return nil, err
	}

	// This submission supersedes every earlier one for the attempt.
	version := attempt.Version + 1
	attempt.Version = version
	attempt.Address = &input
	touch(attempt)
	if err := o.repo.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to persist attempt: %w", err)
	}

	resp, err := o.eligibility.CheckEligibility(ctx, eligibilityclient.CheckRequest{
		Address: eligibilityclient.CheckAddress{
			Line1:      input.Line1,
			Line2:      input.Line2,
			City:       input.City,
			State:      input.State,
			PostalCode: input.PostalCode,
			Country:    input.Country,
		},
		Email:              input.Email,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		SchedulePreference: input.PickupDay,
		MarketingOptIn:     input.MarketingOptIn,
		ServiceID:          attempt.Selection.ID,
	})
	if err != nil {
		return nil, err
	}

	// Drop the response if a newer submission got in while we were waiting.
	current, err := o.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		log.Printf("level=warn component=orchestrator msg=\"stale eligibility response dropped\" attempt_id=%s response_version=%d current_version=%d", attemptID, version, current.Version)
		return nil, domain.ErrStaleResponse
	}
	attempt = current

	if !resp.InsideZone {
		return nil, domain.ErrOutOfServiceArea
	}
	if !resp.ValidTrashDay {
		return nil, domain.ErrScheduleUnavailable
	}

	validated := &domain.ValidatedAddress{
		AddressID:         resp.AddressID,
		Location:          resp.Location,
		InsideServiceZone: resp.InsideZone,
		ValidPickupDay:    resp.ValidTrashDay,
		NextServiceDate:   resp.NextServiceDate(),
		Email:             input.Email,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		PickupDay:         input.PickupDay,
	}

	additional := input.BinCount - domain.BaselineBins
	if additional < 0 {
		additional = 0
	}

	attempt.Validated = validated
	attempt.AdditionalBins = additional
	// A fresh eligibility result invalidates any session created for the
	// previous address before a new one can exist.
	attempt.Session = nil
	attempt.Step = domain.StepPayment
	touch(attempt)
	if err := o.repo.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to persist attempt: %w", err)
	}
	if err := o.repo.SaveValidatedAddress(ctx, attemptID, validated); err != nil {
		return nil, fmt.Errorf("failed to cache validated address: %w", err)
	}

	o.analytics.Emit(ctx, domain.NewAnalyticsEvent(domain.EventAddressEntered, attempt.Selection, 1+additional))

	// Await the transition animation before handing off to payment.
	o.transition(ctx)

	return &AddressResult{
		Validated:   validated,
		RedirectURL: o.checkoutRedirectURL(attempt, validated),
	}, nil
}

// validateAddressInput rejects blank required fields and out-of-enumeration
// schedule preferences before any network call.
func validateAddressInput(input domain.AddressInput) error {
	trimmed := input
	trimmed.Line1 = strings.TrimSpace(input.Line1)
	trimmed.City = strings.TrimSpace(input.City)
	trimmed.State = strings.TrimSpace(input.State)
	trimmed.PostalCode = strings.TrimSpace(input.PostalCode)
	trimmed.FirstName = strings.TrimSpace(input.FirstName)
	trimmed.LastName = strings.TrimSpace(input.LastName)
	trimmed.Email = strings.TrimSpace(input.Email)

	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}

	invalid := &domain.ValidationError{}
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			invalid.Fields = append(invalid.Fields, strings.ToLower(fe.Field()))
		}
	}
	return invalid
}

// checkoutRedirectURL builds the hand-off URL for the payment step.
func (o *Orchestrator) checkoutRedirectURL(attempt *domain.CheckoutAttempt, validated *domain.ValidatedAddress) string {
	params := url.Values{}
	params.Set("service_id", attempt.Selection.ID)
	params.Set("address_id", validated.AddressID)
	params.Set("email", validated.Email)
	params.Set("first_name", validated.FirstName)
	params.Set("last_name", validated.LastName)
	params.Set("schedule_preference", string(validated.PickupDay))
	return o.opts.CheckoutBaseURL + "?" + params.Encode()
}
