package montecarlo

import "math"

// OptimalShift returns the drift shift θ that centers the simulated terminal
// price on the strike:
//
//	θ = [ln(K/S) − (r − ½σ²)T] / (σ√T)
//
// Sampling Z ~ Normal(θ, 1) then puts the median of S_T at K, so a deep
// out-of-the-money call is exercised on roughly half the paths.
// Degenerate parameters return 0.
func OptimalShift(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if p.Degenerate() {
		return 0, nil
	}
	num := math.Log(p.Strike/p.Spot) - (p.Rate-0.5*p.Volatility*p.Volatility)*p.Maturity
	return num / (p.Volatility * math.Sqrt(p.Maturity)), nil
}
