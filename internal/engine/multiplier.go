package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Multiplier is a payout multiplier in hundredths: 1.00x is 100.
type Multiplier int64

const (
	One           Multiplier = 100
	MinCrashPoint Multiplier = 101

	// growth switches from 0.01 to 0.05 per tick at 10.00x
	fastThreshold Multiplier = 1000
	slowStep      Multiplier = 1
	fastStep      Multiplier = 5
)

// MultiplierFromFloat rounds f to two decimals.
func MultiplierFromFloat(f float64) Multiplier {
	return Multiplier(math.Round(f * 100))
}

func (m Multiplier) Float64() float64 { return float64(m) / 100 }

func (m Multiplier) Decimal() decimal.Decimal { return decimal.New(int64(m), -2) }

func (m Multiplier) String() string {
	return fmt.Sprintf("%d.%02dx", m/100, m%100)
}

// Next is the multiplier one flight tick later.
func (m Multiplier) Next() Multiplier {
	if m < fastThreshold {
		return m + slowStep
	}
	return m + fastStep
}

func (m Multiplier) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float64(), 'f', 2, 64)), nil
}

func (m *Multiplier) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("multiplier: %w", err)
	}
	*m = MultiplierFromFloat(f)
	return nil
}
