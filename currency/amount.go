// Package currency implements fixed-point satoshi arithmetic for the wallet.
//
// All internal bookkeeping uses Amount, a signed count of satoshis (base
// units). Conversion to the main unit (BTC) is provided for display only;
// it is lossy in the float64 direction and is never used for accounting.
package currency

import (
	"errors"
	"math"
	"strconv"
)

// SatPerBTC is the number of base units (satoshi) in one main unit (BTC).
const SatPerBTC = 1e8

// Unit tags the representation an amount is expressed in at the API
// boundary. Internal math is always done in Sat.
type Unit uint8

const (
	// Base is the satoshi unit.
	Base Unit = iota
	// Main is the BTC unit.
	Main
)

// String returns the display name of the unit.
func (u Unit) String() string {
	switch u {
	case Main:
		return "BTC"
	case Base:
		return "sat"
	default:
		return "unknown"
	}
}

// ErrInvalidAmount is returned when a main-unit float cannot be represented
// as a whole number of satoshi, mirroring btcutil.NewAmount's guard against
// NaN/Inf/out-of-range input.
var ErrInvalidAmount = errors.New("currency: invalid amount")

// Amount is a count of satoshi. It may be negative: ledgers compute signed
// per-state deltas before the non-negativity of any individual UTXO or
// balance total is checked at the ledger layer.
type Amount int64

// NewAmount builds an Amount from a main-unit (BTC) value, rounding to the
// nearest satoshi.
func NewAmount(btc float64) (Amount, error) {
	if math.IsNaN(btc) || math.IsInf(btc, 0) {
		return 0, ErrInvalidAmount
	}

	round := math.Round(btc * SatPerBTC)
	if round < math.MinInt64 || round > math.MaxInt64 {
		return 0, ErrInvalidAmount
	}

	return Amount(round), nil
}

// Sat returns the amount expressed in base units.
func (a Amount) Sat() int64 {
	return int64(a)
}

// ToUnit converts the amount to the given unit's floating point
// representation. Only safe for display; never round-trip through this for
// accounting.
func (a Amount) ToUnit(u Unit) float64 {
	switch u {
	case Main:
		return float64(a) / SatPerBTC
	case Base:
		return float64(a)
	default:
		return math.NaN()
	}
}

// String formats the amount as a lossless base-unit display, or
// a trimmed BTC display when asked for main-unit text via Format.
func (a Amount) String() string {
	return a.Format(Base)
}

// Format renders the amount in the requested unit.
func (a Amount) Format(u Unit) string {
	if u == Base {
		return strconv.FormatInt(int64(a), 10) + " sat"
	}
	return strconv.FormatFloat(a.ToUnit(Main), 'f', -1, 64) + " BTC"
}

// Add returns a+b. Overflow is not checked: satoshi sums over any
// reasonable UTXO set are far below int64 range, matching how
// btcutil.Amount arithmetic works.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return a - b
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}
