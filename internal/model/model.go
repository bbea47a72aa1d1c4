// Package model defines the records shared across the option engine.
// Monetary values (spot, strike, price, standard error, interval bounds)
// use shopspring/decimal; model inputs that are not money stay float64.
package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/option-engine/internal/montecarlo"
)

// PricingRun is an immutable record of one Monte Carlo pricing call.
// Once created, runs are never modified or deleted.
type PricingRun struct {
	ID         string          `json:"id" db:"id"`
	Key        string          `json:"key" db:"key"`
	Contract   string          `json:"contract,omitempty" db:"contract"` // ticker, when priced by contract
	Mode       string          `json:"mode" db:"mode"`                   // "naive" or "importance"
	Spot       decimal.Decimal `json:"spot" db:"spot"`
	Strike     decimal.Decimal `json:"strike" db:"strike"`
	Maturity   float64         `json:"maturity" db:"maturity"` // years
	Rate       float64         `json:"rate" db:"rate"`
	Volatility float64         `json:"volatility" db:"volatility"`
	Samples    int             `json:"samples" db:"samples"`
	Shift      float64         `json:"shift" db:"shift"`
	Seed       uint64          `json:"seed" db:"seed"`
	Price      decimal.Decimal `json:"price" db:"price"`
	StdErr     decimal.Decimal `json:"standard_error" db:"std_err"`
	CILow      decimal.Decimal `json:"ci_low" db:"ci_low"`   // 95% interval
	CIHigh     decimal.Decimal `json:"ci_high" db:"ci_high"` // 95% interval
	ElapsedMS  int64           `json:"elapsed_ms" db:"elapsed_ms"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// NewPricingRun builds a run record from a pricing result.
func NewPricingRun(id, ticker string, p montecarlo.Params, res montecarlo.Result, seed uint64, elapsed time.Duration, now time.Time) *PricingRun {
	lo, hi := res.CI95()
	return &PricingRun{
		ID:         id,
		Key:        RunKey(string(res.Mode), p, res.Samples, res.Shift, seed),
		Contract:   ticker,
		Mode:       string(res.Mode),
		Spot:       decimal.NewFromFloat(p.Spot),
		Strike:     decimal.NewFromFloat(p.Strike),
		Maturity:   p.Maturity,
		Rate:       p.Rate,
		Volatility: p.Volatility,
		Samples:    res.Samples,
		Shift:      res.Shift,
		Seed:       seed,
		Price:      decimal.NewFromFloat(res.Price),
		StdErr:     decimal.NewFromFloat(res.StdErr),
		CILow:      decimal.NewFromFloat(lo),
		CIHigh:     decimal.NewFromFloat(hi),
		ElapsedMS:  elapsed.Milliseconds(),
		CreatedAt:  now,
	}
}

// Params recovers the market parameters the run was priced with.
func (r *PricingRun) Params() montecarlo.Params {
	return montecarlo.Params{
		Spot:       r.Spot.InexactFloat64(),
		Strike:     r.Strike.InexactFloat64(),
		Maturity:   r.Maturity,
		Rate:       r.Rate,
		Volatility: r.Volatility,
	}
}

// Comparison pairs a naive and an importance-sampled run at the same sample
// count and seed with the Black-Scholes reference price.
type Comparison struct {
	Naive             PricingRun      `json:"naive"`
	Importance        PricingRun      `json:"importance"`
	Reference         decimal.Decimal `json:"reference"`
	NaiveError        decimal.Decimal `json:"naive_error"`      // naive - reference
	ImportanceError   decimal.Decimal `json:"importance_error"` // importance - reference
	VarianceReduction float64         `json:"variance_reduction"`
}

// runNamespace scopes run keys so they never collide with other UUIDv5 users.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:atmx:option-engine:pricing-run"))

// RunKey derives the deterministic key of a seeded run. Two calls with the
// same mode, parameters, sample count, shift and seed produce the same
// result, so they share a key.
func RunKey(mode string, p montecarlo.Params, samples int, shift float64, seed uint64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	canonical := strings.Join([]string{
		mode,
		f(p.Spot), f(p.Strike), f(p.Maturity), f(p.Rate), f(p.Volatility),
		strconv.Itoa(samples),
		f(shift),
		strconv.FormatUint(seed, 10),
	}, "|")
	return uuid.NewSHA1(runNamespace, []byte(canonical)).String()
}
