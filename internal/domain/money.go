package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places carried by stored amounts.
// Amounts are in major units (naira, not kobo).
const AmountScale = 2

var minorUnitFactor = decimal.New(1, AmountScale)

// ToMinorUnits converts a major-unit amount to provider minor units (kobo, cents).
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(minorUnitFactor).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a major-unit amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -AmountScale)
}

// ValidateAmount rejects non-positive amounts and amounts with more than two decimal places.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return Validation(fmt.Sprintf("amount must be greater than zero, got %s", d.String()))
	}
	if !d.Equal(d.Round(AmountScale)) {
		return Validation(fmt.Sprintf("amount must have at most %d decimal places, got %s", AmountScale, d.String()))
	}
	return nil
}
