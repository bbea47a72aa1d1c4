package montecarlo

import "math"

// LikelihoodRatio is the Radon-Nikodym derivative of the standard normal
// measure with respect to Normal(θ, 1), evaluated at z:
//
//	L(z) = φ(z) / φ(z − θ) = exp(−θz + ½θ²)
//
// E[L(Z)] = 1 when Z ~ Normal(θ, 1).
func LikelihoodRatio(z, theta float64) float64 {
	return math.Exp(-theta*z + 0.5*theta*theta)
}

// LikelihoodRatios applies LikelihoodRatio to every draw.
func LikelihoodRatios(zs []float64, theta float64) []float64 {
	out := make([]float64, len(zs))
	for i, z := range zs {
		out[i] = LikelihoodRatio(z, theta)
	}
	return out
}
