package domain

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CurrencyPlaces is the number of fraction digits kept for amounts and percents.
const CurrencyPlaces = 2

// LedgerCurrency is the single currency every amount is denominated in.
const LedgerCurrency = "USD"

// MaxAmount is the largest value an amount column holds (12 digits, 2 after the point).
var MaxAmount = decimal.RequireFromString("9999999999.99")

// CheckCurrency rejects a seller or investor input that a ledger column cannot
// hold exactly: more than two decimal places, or above MaxAmount. Values are
// never rounded into range.
func CheckCurrency(field string, v decimal.Decimal) error {
	if !v.Equal(RoundCurrency(v)) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must have at most 2 decimal places.", field)}
	}
	if v.GreaterThan(MaxAmount) {
		limit := MaxAmount
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must not exceed %s.", field, DisplayCurrency(MaxAmount)),
			Limit:   &limit,
		}
	}
	return nil
}

// Terms are the investable terms of a listing derived from seller inputs.
type Terms struct {
	OfferedPercent decimal.Decimal
	TargetAmount   decimal.Decimal
}

// ComputeTerms derives the offered percent and target amount from the asset value
// and the percent the seller retains. Values are left unrounded; call Rounded at
// the point they are persisted or displayed.
func ComputeTerms(assetValue, sellerRetainPercent decimal.Decimal) (Terms, error) {
	if assetValue.IsNegative() {
		return Terms{}, &ValidationError{Field: "asset_value", Message: "Asset value must not be negative."}
	}
	if sellerRetainPercent.IsNegative() || sellerRetainPercent.GreaterThan(hundred) {
		return Terms{}, &ValidationError{Field: "seller_retain_percent", Message: "Seller retain percent must be between 0 and 100."}
	}
	offered := clampPercent(hundred.Sub(sellerRetainPercent))
	return Terms{
		OfferedPercent: offered,
		TargetAmount:   assetValue.Mul(offered).Div(hundred),
	}, nil
}

// Rounded returns the terms at currency precision (round half up).
func (t Terms) Rounded() Terms {
	return Terms{
		OfferedPercent: RoundCurrency(t.OfferedPercent),
		TargetAmount:   RoundCurrency(t.TargetAmount),
	}
}

// RoundCurrency rounds to two decimal places, halves away from zero. All ledger
// amounts are non-negative, so this is round-half-up.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// FormatCurrency renders d with exactly two fraction digits ("300.00").
func FormatCurrency(d decimal.Decimal) string {
	return d.StringFixed(CurrencyPlaces)
}

// DisplayCurrency renders d for user-facing messages ("$1,200.00").
func DisplayCurrency(d decimal.Decimal) string {
	cents := RoundCurrency(d).Shift(CurrencyPlaces).IntPart()
	return money.New(cents, LedgerCurrency).Display()
}

// OwnershipPercent is the share of the whole asset an amount buys.
func OwnershipPercent(amount, assetValue decimal.Decimal) decimal.Decimal {
	if !assetValue.IsPositive() {
		return decimal.Zero
	}
	return RoundCurrency(amount.Div(assetValue).Mul(hundred))
}

// PercentFunded is total / target * 100, zero when the target is zero.
func PercentFunded(total, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return RoundCurrency(total.Div(target).Mul(hundred))
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
