package normalize

import "github.com/shopspring/decimal"

// sqftPerSqm is the conversion factor between square metres and square
// feet. DLD reports areas in sqm; the canonical store holds sqft.
var sqftPerSqm = decimal.RequireFromString("10.7639")

// SqmToSqft converts an area in square metres to square feet, rounded to
// two decimal places.
func SqmToSqft(sqm decimal.Decimal) decimal.Decimal {
	return sqm.Mul(sqftPerSqm).Round(2)
}
