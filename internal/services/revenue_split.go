package services

import "github.com/shopspring/decimal"

// The split is fixed. Nothing in the service accepts an override.
var (
	platformRate = decimal.RequireFromString("0.35")
	creatorRate  = decimal.RequireFromString("0.65")
)

// moneyPlaces is the number of decimal places kept for recorded money values
const moneyPlaces = 2

// RevenueSplit is the platform/creator allocation of one token amount
type RevenueSplit struct {
	PlatformShare decimal.Decimal
	CreatorShare  decimal.Decimal
}

// SplitRevenue allocates 35% to the platform and 65% to the creator, each
// rounded half-up to two places. Rounding each share independently means the
// sum can differ from the amount by 0.01; reconciliation reports accept that.
func SplitRevenue(tokenAmount decimal.Decimal) RevenueSplit {
	return RevenueSplit{
		PlatformShare: roundMoney(tokenAmount.Mul(platformRate)),
		CreatorShare:  roundMoney(tokenAmount.Mul(creatorRate)),
	}
}

// USDEquivalent converts tokens to USD for reporting, rounded half-up to two places
func USDEquivalent(tokenAmount, conversionRate decimal.Decimal) decimal.Decimal {
	return roundMoney(tokenAmount.Mul(conversionRate))
}

// roundMoney rounds half away from zero, which is half-up for the positive
// amounts the ledger accepts.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// formatMoney is the canonical string form used inside block data
func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}
