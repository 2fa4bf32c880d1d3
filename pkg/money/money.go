package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are carried in the major currency unit with 2 fraction digits.
// The payment gateway reports amounts in the minor unit; conversion uses a
// per-currency divisor (most currencies 100, zero-decimal currencies 1).

// zeroDecimalCurrencies lists ISO codes whose minor unit equals the major unit.
// Mirrors the gateway's documented zero-decimal set.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {},
	"krw": {}, "mga": {}, "pyg": {}, "rwf": {}, "ugx": {}, "vnd": {},
	"vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// Divisor returns the minor-unit divisor for a currency code.
func Divisor(currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(strings.TrimSpace(currency))]; ok {
		return 1
	}
	return 100
}

// FromMinorUnit converts a gateway minor-unit amount to a major-unit decimal.
func FromMinorUnit(amount int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(Divisor(currency))).Round(2)
}

// ToMinorUnit converts a major-unit decimal to the gateway's minor unit.
// The amount is rounded to 2 fraction digits before conversion.
func ToMinorUnit(amount decimal.Decimal, currency string) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(Divisor(currency))).IntPart()
}

// Round normalizes an amount to the 2-fraction-digit precision the ledger stores.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
