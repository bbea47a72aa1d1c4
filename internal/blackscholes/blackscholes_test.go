package blackscholes

import (
	"context"
	"math"
	"testing"

	"github.com/atmx/option-engine/internal/montecarlo"
)

var deepOTM = montecarlo.Params{Spot: 100, Strike: 140, Maturity: 1, Rate: 0.05, Volatility: 0.2}

func TestCall_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		p    montecarlo.Params
		want float64
	}{
		{"deep OTM", deepOTM, 0.784965},
		{"at the money", montecarlo.Params{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Volatility: 0.2}, 10.450584},
	}
	for _, tt := range tests {
		if got := Call(tt.p); math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("%s: expected %.6f, got %.6f", tt.name, tt.want, got)
		}
	}
}

func TestCall_DegenerateIsIntrinsic(t *testing.T) {
	p := montecarlo.Params{Spot: 150, Strike: 140, Maturity: 0, Rate: 0.05, Volatility: 0.2}
	if got := Call(p); got != 10 {
		t.Errorf("expected intrinsic 10, got %g", got)
	}
	p.Spot = 100
	if got := Call(p); got != 0 {
		t.Errorf("expected intrinsic 0, got %g", got)
	}
}

func TestCall_WithinNoArbitrageBounds(t *testing.T) {
	for _, k := range []float64{60, 90, 100, 110, 200} {
		p := montecarlo.Params{Spot: 100, Strike: k, Maturity: 0.75, Rate: 0.03, Volatility: 0.35}
		c := Call(p)
		lower := math.Max(p.Spot-k*p.Discount(), 0)
		if c < lower-1e-9 || c > p.Spot {
			t.Errorf("K=%g: price %.6f outside [%.6f, %.2f]", k, c, lower, p.Spot)
		}
	}
}

func TestExerciseProbability_DeepOTM(t *testing.T) {
	got := ExerciseProbability(deepOTM)
	if got < 0.05 || got > 0.08 {
		t.Errorf("expected ITM probability ≈ 0.063, got %.4f", got)
	}
}

func TestMonteCarloConvergesToCall(t *testing.T) {
	if testing.Short() {
		t.Skip("large batch")
	}
	want := Call(deepOTM)
	ctx := context.Background()

	tests := []struct {
		mode montecarlo.Mode
		n    int
	}{
		{montecarlo.ModeNaive, 1_000_000},
		{montecarlo.ModeImportance, 200_000},
	}
	for _, tt := range tests {
		res, err := montecarlo.Price(ctx, deepOTM, tt.n, tt.mode, nil, 2024)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.mode, err)
		}
		if math.Abs(res.Price-want) > 4*res.StdErr {
			t.Errorf("%s: estimate %.5f±%.5f too far from Black-Scholes %.5f",
				tt.mode, res.Price, res.StdErr, want)
		}
	}
}
