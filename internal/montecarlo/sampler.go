package montecarlo

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

// PathBatch holds the draws of one simulation call. Shocks[i] and
// Terminal[i] describe the same path; Weights is nil unless the batch was
// drawn for a reweighted estimator.
type PathBatch struct {
	Shift    float64
	Shocks   []float64
	Terminal []float64
	Weights  []float64
}

// Len returns the number of paths in the batch.
func (b *PathBatch) Len() int {
	return len(b.Shocks)
}

func newPathBatch(n int, theta float64, weighted bool) *PathBatch {
	b := &PathBatch{
		Shift:    theta,
		Shocks:   make([]float64, n),
		Terminal: make([]float64, n),
	}
	if weighted {
		b.Weights = make([]float64, n)
	}
	return b
}

// terminalMap precomputes the constant part of the GBM terminal-price map.
type terminalMap struct {
	spot, drift, diffusion float64
}

func newTerminalMap(p Params) terminalMap {
	return terminalMap{
		spot:      p.Spot,
		drift:     (p.Rate - 0.5*p.Volatility*p.Volatility) * p.Maturity,
		diffusion: p.Volatility * math.Sqrt(p.Maturity),
	}
}

func (m terminalMap) at(z float64) float64 {
	return m.spot * math.Exp(m.drift+m.diffusion*z)
}

// TerminalPrice maps a normal draw z to S · exp[(r − ½σ²)T + σ√T · z].
func TerminalPrice(p Params, z float64) float64 {
	return newTerminalMap(p).at(z)
}

// fill draws paths [lo, hi) of the batch from rng.
func (b *PathBatch) fill(m terminalMap, rng *rand.Rand, lo, hi int) {
	for i := lo; i < hi; i++ {
		z := b.Shift + rng.NormFloat64()
		b.Shocks[i] = z
		b.Terminal[i] = m.at(z)
		if b.Weights != nil {
			b.Weights[i] = LikelihoodRatio(z, b.Shift)
		}
	}
}

// Sample draws n independent Z ~ Normal(theta, 1) from src, in order, and
// maps each to a terminal asset price. The returned batch carries no weights.
func Sample(p Params, n int, theta float64, src rand.Source) (*PathBatch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleCount, n)
	}
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return nil, fmt.Errorf("%w: shift is not finite", ErrDomain)
	}

	b := newPathBatch(n, theta, false)
	b.fill(newTerminalMap(p), rand.New(src), 0, n)
	return b, nil
}
