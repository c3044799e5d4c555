/**
 * @description
 * This file defines the analytics events emitted by the checkout funnel.
 * Analytics is a fire-and-forget sink: events are published to a topic
 * exchange and a publish failure never fails the step that produced it.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Analytics event names. These match the names the marketing pixels expect,
// which is why ViewContent is capitalized differently from the rest.
const (
	EventAddressEntered   = "address_entered"
	EventAddToCart        = "add_to_cart"
	EventInitiateCheckout = "initiate_checkout"
	EventPurchase         = "purchase"
	EventViewContent      = "ViewContent"
)

// AnalyticsEvent is the payload published for every funnel signal. Every
// event carries at minimum an item identifier, price, currency, and quantity.
type AnalyticsEvent struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	ItemID     string         `json:"item_id"`
	ItemName   string         `json:"item_name,omitempty"`
	Price      int64          `json:"price"` // in cents
	Currency   string         `json:"currency"`
	Quantity   int            `json:"quantity"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewAnalyticsEvent builds an event for the given selection with the shared
// required fields populated.
func NewAnalyticsEvent(name string, sel ServiceSelection, quantity int) AnalyticsEvent {
	if quantity < 1 {
		quantity = 1
	}
	return AnalyticsEvent{
		ID:        uuid.New(),
		Name:      name,
		ItemID:    sel.ID,
		ItemName:  sel.Name,
		Price:     sel.Price,
		Currency:  sel.Currency,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}
}
