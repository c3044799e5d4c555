/**
 * @description
 * Order-summary rendering. Amounts arrive in the smallest currency unit and
 * are formatted for display with two decimal places, prefixed with the
 * currency symbol when one is known.
 */

package app

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/curbside/checkout-service/internal/domain"
)

// currencySymbols maps ISO-4217 codes to display prefixes. Codes without an
// entry are rendered as 'CODE 12.34'.
var currencySymbols = map[string]string{
	"usd": "$",
	"cad": "$",
	"eur": "€",
	"gbp": "£",
}

// formatAmount renders a minor-unit amount as a display string, e.g. 1080
// cents of usd as '$10.80'.
func formatAmount(cents int64, currency string) string {
	value := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
	code := strings.ToLower(strings.TrimSpace(currency))
	if symbol, ok := currencySymbols[code]; ok {
		return symbol + value
	}
	if code == "" {
		return value
	}
	return strings.ToUpper(code) + " " + value
}

// buildOrderSummary renders the itemized breakdown shown before payment.
func buildOrderSummary(selection domain.ServiceSelection, session *domain.PaymentSession, additionalBins int) *domain.OrderSummary {
	return &domain.OrderSummary{
		ServiceName:         selection.Name,
		ServiceAmount:       formatAmount(session.ServiceAmount, session.Currency),
		AdditionalBins:      additionalBins,
		AdditionalBinAmount: formatAmount(session.AdditionalBinAmount, session.Currency),
		Subtotal:            formatAmount(session.Subtotal, session.Currency),
		Tax:                 formatAmount(session.TaxAmount, session.Currency),
		Total:               formatAmount(session.Total, session.Currency),
		Currency:            session.Currency,
		NextServiceDate:     session.NextServiceDate,
	}
}
