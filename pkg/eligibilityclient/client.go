/**
 * @description
 * This package provides a client for the remote geocode / service-area
 * eligibility API and its read-only product catalog. It encapsulates the
 * logic for making HTTP requests, parsing responses into explicit schemas at
 * the boundary, and mapping failures onto the checkout error taxonomy.
 *
 * Key features:
 * - Manages the API base URL and request timeout.
 * - One method per endpoint: CheckEligibility and ListProducts.
 * - Non-2xx responses with a server-supplied message become ServerRejection;
 *   transport failures and opaque bodies become NetworkError.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - internal/domain for the checkout models and error types.
 */
package eligibilityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/curbside/checkout-service/internal/domain"
)

// Client is a client for the eligibility API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new eligibility API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CheckRequest is the request body for POST /eligibility-check.
type CheckRequest struct {
	Address            CheckAddress     `json:"address"`
	Email              string           `json:"email"`
	FirstName          string           `json:"first_name"`
	LastName           string           `json:"last_name"`
	SchedulePreference domain.PickupDay `json:"schedule_preference"`
	MarketingOptIn     bool             `json:"marketing_opt_in"`
	ServiceID          string           `json:"service_id"`
}

// CheckAddress is the address portion of the eligibility request.
type CheckAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CheckResponse is the wire schema for a 2xx eligibility response.
type CheckResponse struct {
	InsideZone     bool            `json:"inside_zone"`
	ValidTrashDay  bool            `json:"valid_trash_day"`
	AddressID      string          `json:"address_id"`
	Location       domain.GeoPoint `json:"location"`
	NextServiceDay string          `json:"next_service_day,omitempty"` // YYYY-MM-DD
}

// catalogItem is one entry of the POST /product-catalog response.
type catalogItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"` // in cents
	Currency    string `json:"currency"`
}

// errorBody is the error variant every endpoint may answer with.
type errorBody struct {
	Message string `json:"message"`
}

// CheckEligibility issues the geocode + service-zone + schedule validation
// request and returns the parsed result. The caller decides what the zone and
// schedule flags mean for the flow.
func (c *Client) CheckEligibility(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	url := fmt.Sprintf("%s/eligibility-check", c.baseURL)
	var resp CheckResponse
	if err := c.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextServiceDate parses the response's next service day, if present.
func (r *CheckResponse) NextServiceDate() *time.Time {
	if r.NextServiceDay == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", r.NextServiceDay)
	if err != nil {
		log.Printf("level=warn component=eligibility_client msg=\"unparseable next_service_day\" value=%q err=%v", r.NextServiceDay, err)
		return nil
	}
	return &parsed
}

// ListProducts fetches the read-only product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]domain.ServiceSelection, error) {
	url := fmt.Sprintf("%s/product-catalog", c.baseURL)
	var items []catalogItem
	if err := c.do(ctx, http.MethodPost, url, nil, &items); err != nil {
		return nil, err
	}

	selections := make([]domain.ServiceSelection, 0, len(items))
	for _, item := range items {
		selections = append(selections, domain.ServiceSelection{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Currency:    item.Currency,
		})
	}
	return selections, nil
}

// do is a helper function to make HTTP requests to the eligibility API.
func (c *Client) do(ctx context.Context, method, url string, body, target interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "eligibility", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=eligibility_client msg=\"non-success status\" method=%s url=%s status=%d", method, url, resp.StatusCode)
		var serverErr errorBody
		if json.Unmarshal(respBody, &serverErr) == nil && serverErr.Message != "" {
			return &domain.ServerRejection{Op: "eligibility", StatusCode: resp.StatusCode, Message: serverErr.Message}
		}
		return &domain.NetworkError{Op: "eligibility", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return &domain.NetworkError{Op: "eligibility", Err: fmt.Errorf("unmarshal response: %w", err)}
		}
	}

	return nil
}
