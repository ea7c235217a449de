package credits

import (
	"fmt"
	"math"
	"strconv"
)

// Amount is a credit amount held in hundredths of a credit. Integer
// arithmetic keeps the 2-decimal contract exact; no float drift.
type Amount int64

// FromCents builds an Amount from hundredths of a credit.
func FromCents(cents int64) Amount { return Amount(cents) }

// Cents returns the amount in hundredths of a credit.
func (a Amount) Cents() int64 { return int64(a) }

// Float64 returns the amount as whole credits.
func (a Amount) Float64() float64 { return float64(a) / 100 }

// String formats the amount with exactly two decimal places.
func (a Amount) String() string {
	return strconv.FormatFloat(a.Float64(), 'f', 2, 64)
}

// MarshalJSON emits a JSON number with exactly two decimal places
// (e.g. 25.00, never 25 or 25.0).
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON parses a JSON number into an Amount, rounding half-up
// to two decimals.
func (a *Amount) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse credit amount %q: %w", data, ErrInvalidInput)
	}
	*a = Amount(math.Round(f * 100))
	return nil
}
