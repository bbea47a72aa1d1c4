// Package contract parses European call tickers and derives the time to
// maturity used by the pricing engine.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// TypeEuropeanCall is the only supported contract type.
const TypeEuropeanCall = "EC"

// DaysPerYear is the ACT/365 year basis.
const DaysPerYear = 365.0

// tickerRegex matches: EC-{strike}-{YYYYMMDD}
// Example: EC-140-20271016, EC-142.5-20271016
var tickerRegex = regexp.MustCompile(
	`^(EC)-([0-9]+(?:\.[0-9]+)?)-(\d{8})$`,
)

var (
	ErrInvalidTicker = errors.New("contract: invalid ticker format")
	ErrInvalidStrike = errors.New("contract: strike must be positive")
)

// Contract represents a parsed European call.
type Contract struct {
	Ticker     string          `json:"ticker"`
	Type       string          `json:"type"`
	Strike     decimal.Decimal `json:"strike"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

// ParseTicker parses and validates a contract ticker string.
// Format: EC-{strike}-{YYYYMMDD}
func ParseTicker(ticker string) (*Contract, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected EC-{strike}-{YYYYMMDD})",
			ErrInvalidTicker, ticker)
	}

	strike, err := decimal.NewFromString(matches[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTicker, matches[2])
	}
	if !strike.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrike, strike)
	}

	expiry, err := time.Parse("20060102", matches[3])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidTicker, matches[3])
	}

	return &Contract{
		Ticker:     ticker,
		Type:       matches[1],
		Strike:     strike,
		ExpiryDate: expiry,
	}, nil
}

// TimeToMaturity returns the ACT/365 year fraction from asOf to expiry.
// Expired contracts return 0 and are priced at intrinsic value.
func (c *Contract) TimeToMaturity(asOf time.Time) float64 {
	days := c.ExpiryDate.Sub(asOf.UTC()).Hours() / 24
	if days <= 0 {
		return 0
	}
	return days / DaysPerYear
}

// StrikeFloat returns the strike as float64 for the numerical core.
func (c *Contract) StrikeFloat() float64 {
	return c.Strike.InexactFloat64()
}
