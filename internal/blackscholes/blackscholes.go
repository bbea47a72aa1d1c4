// Package blackscholes provides the closed-form Black-Scholes price of a
// European call. It is the ground truth the Monte Carlo estimators are
// measured against and is not used by the estimators themselves.
package blackscholes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/atmx/option-engine/internal/montecarlo"
)

// Call returns the Black-Scholes price of a European call:
//
//	C = S·N(d1) − K·exp(−rT)·N(d2)
//	d1 = [ln(S/K) + (r + ½σ²)T] / (σ√T),  d2 = d1 − σ√T
//
// Degenerate inputs (T ≤ 0 or σ ≤ 0) return the intrinsic value.
func Call(p montecarlo.Params) float64 {
	if p.Degenerate() {
		return p.Intrinsic()
	}
	d1, d2 := D1D2(p)
	n := distuv.UnitNormal
	return p.Spot*n.CDF(d1) - p.Strike*p.Discount()*n.CDF(d2)
}

// D1D2 returns the Black-Scholes d1 and d2 terms.
func D1D2(p montecarlo.Params) (d1, d2 float64) {
	volSqrtT := p.Volatility * math.Sqrt(p.Maturity)
	d1 = (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Volatility*p.Volatility)*p.Maturity) / volSqrtT
	return d1, d1 - volSqrtT
}

// ExerciseProbability is the risk-neutral probability N(d2) that the call
// finishes in the money.
func ExerciseProbability(p montecarlo.Params) float64 {
	if p.Degenerate() {
		if p.Spot > p.Strike {
			return 1
		}
		return 0
	}
	_, d2 := D1D2(p)
	return distuv.UnitNormal.CDF(d2)
}
