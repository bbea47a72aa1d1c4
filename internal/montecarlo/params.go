// Package montecarlo prices European call options under geometric Brownian
// motion by Monte Carlo simulation, with optional importance sampling through
// a Girsanov drift shift of the sampling distribution.
//
// The estimator draws Z ~ Normal(θ, 1), maps each draw to a terminal price
//
//	S_T = S · exp[(r − ½σ²)T + σ√T · Z]
//
// and, when sampling under a shifted measure, multiplies each discounted
// payoff by the Radon-Nikodym weight L(Z) = exp(−θZ + ½θ²) so the mean stays
// an unbiased estimate under the risk-neutral measure.
//
// Every call is a pure function of its inputs and a seed. Nothing here logs,
// keeps state between calls, or reads global randomness.
package montecarlo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDomain is returned when market parameters fall outside the model
	// domain: S ≤ 0, K ≤ 0, T < 0, σ < 0, or any non-finite input.
	ErrDomain = errors.New("montecarlo: parameter outside model domain")

	// ErrInvalidSampleCount is returned when the number of paths is not a
	// positive integer. It is raised before any random draw is made.
	ErrInvalidSampleCount = errors.New("montecarlo: sample count must be a positive integer")
)

// Params are the market inputs of a single pricing call.
type Params struct {
	Spot       float64 `json:"spot"`       // S
	Strike     float64 `json:"strike"`     // K
	Maturity   float64 `json:"maturity"`   // T in years
	Rate       float64 `json:"rate"`       // r, continuously compounded
	Volatility float64 `json:"volatility"` // σ, annualized
}

// Validate checks the parameters against the model domain.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"spot", p.Spot},
		{"strike", p.Strike},
		{"maturity", p.Maturity},
		{"rate", p.Rate},
		{"volatility", p.Volatility},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrDomain, f.name)
		}
	}
	switch {
	case p.Spot <= 0:
		return fmt.Errorf("%w: spot must be positive, got %g", ErrDomain, p.Spot)
	case p.Strike <= 0:
		return fmt.Errorf("%w: strike must be positive, got %g", ErrDomain, p.Strike)
	case p.Maturity < 0:
		return fmt.Errorf("%w: maturity must be non-negative, got %g", ErrDomain, p.Maturity)
	case p.Volatility < 0:
		return fmt.Errorf("%w: volatility must be non-negative, got %g", ErrDomain, p.Volatility)
	}
	return nil
}

// Degenerate reports whether the diffusion vanishes (T ≤ 0 or σ ≤ 0). A
// degenerate option is priced at its intrinsic value with zero error.
func (p Params) Degenerate() bool {
	return p.Maturity <= 0 || p.Volatility <= 0
}

// Intrinsic returns max(S − K, 0).
func (p Params) Intrinsic() float64 {
	return CallPayoff(p.Spot, p.Strike)
}

// Discount returns the discount factor exp(−rT).
func (p Params) Discount() float64 {
	return math.Exp(-p.Rate * p.Maturity)
}

// CallPayoff is the European call payoff max(S_T − K, 0).
func CallPayoff(terminal, strike float64) float64 {
	return math.Max(terminal-strike, 0)
}
