/**
 * @description
 * This package provides a client for the payment backend: the publishable-key
 * settings endpoint and the payment-session endpoint that exchanges a
 * validated address + service selection for a client secret and an itemized
 * amount breakdown.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - internal/domain for the checkout models and error types.
 */
package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/curbside/checkout-service/internal/domain"
)

// Client is a client for the payment backend API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new payment backend client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// keySettingsResponse is the wire schema of GET /payment-key-settings.
type keySettingsResponse struct {
	APIKey string `json:"api_key"`
}

// CreateSessionRequest is the request body for POST /payment-session.
type CreateSessionRequest struct {
	ProductID          string           `json:"product_id"`
	FirstName          string           `json:"first_name"`
	LastName           string           `json:"last_name"`
	Email              string           `json:"email"`
	AddressID          string           `json:"address_id"`
	SchedulePreference domain.PickupDay `json:"schedule_preference"`
	AdditionalUnits    int              `json:"additional_units"`
	Location           domain.GeoPoint  `json:"location"`
}

// SessionResponse is the wire schema for a 2xx payment-session response.
// Amounts are in cents. Individual amount fields may be absent; the caller
// derives missing sums from the ones present.
type SessionResponse struct {
	ClientSecret        string `json:"client_secret"`
	NextServiceDay      string `json:"next_service_day,omitempty"` // YYYY-MM-DD
	AmountTotal         int64  `json:"amount_total"`
	TaxAmount           int64  `json:"tax_amount"`
	ServiceAmount       int64  `json:"service_amount"`
	AdditionalBinAmount int64  `json:"additional_bin_amount"`
	Subtotal            int64  `json:"subtotal"`
	Total               int64  `json:"total"`
	Currency            string `json:"currency,omitempty"`
}

// errorBody is the error variant every endpoint may answer with.
type errorBody struct {
	Message string `json:"message"`
}

// GetPublishableKey fetches the publishable key from the settings endpoint.
// It returns ErrKeyRetrieval when the endpoint answers without a key.
func (c *Client) GetPublishableKey(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/payment-key-settings", c.baseURL)
	var resp keySettingsResponse
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return "", err
	}
	key := strings.TrimSpace(resp.APIKey)
	if key == "" {
		return "", domain.ErrKeyRetrieval
	}
	return key, nil
}

// CreateSession creates a payment session for the validated address and
// selection. It returns ErrSessionSecret when the response lacks a client
// secret.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	url := fmt.Sprintf("%s/payment-session", c.baseURL)
	var resp SessionResponse
	if err := c.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.ClientSecret) == "" {
		return nil, domain.ErrSessionSecret
	}
	return &resp, nil
}

// NextServiceDate parses the response's next service day, if present.
func (r *SessionResponse) NextServiceDate() *time.Time {
	if r.NextServiceDay == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", r.NextServiceDay)
	if err != nil {
		log.Printf("level=warn component=payment_client msg=\"unparseable next_service_day\" value=%q err=%v", r.NextServiceDay, err)
		return nil
	}
	return &parsed
}

// do is a helper function to make HTTP requests to the payment backend.
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
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "payment", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=payment_client msg=\"non-success status\" method=%s url=%s status=%d", method, url, resp.StatusCode)
		var serverErr errorBody
		if json.Unmarshal(respBody, &serverErr) == nil && serverErr.Message != "" {
			return &domain.ServerRejection{Op: "payment", StatusCode: resp.StatusCode, Message: serverErr.Message}
		}
		return &domain.NetworkError{Op: "payment", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return &domain.NetworkError{Op: "payment", Err: fmt.Errorf("unmarshal response: %w", err)}
		}
	}

	return nil
}
