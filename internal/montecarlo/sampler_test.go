package montecarlo

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

func TestSample_Reproducible(t *testing.T) {
	a, err := Sample(deepOTM, 1000, 0.8, rand.NewSource(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Sample(deepOTM, 1000, 0.8, rand.NewSource(7))
	c, _ := Sample(deepOTM, 1000, 0.8, rand.NewSource(8))

	same := true
	for i := range a.Shocks {
		if a.Shocks[i] != b.Shocks[i] || a.Terminal[i] != b.Terminal[i] {
			t.Fatalf("path %d differs for identical seeds", i)
		}
		if a.Shocks[i] != c.Shocks[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds should produce different draws")
	}
}

func TestSample_ShiftMovesMean(t *testing.T) {
	const n = 200_000
	for _, theta := range []float64{0, 1.53, -0.7} {
		batch, err := Sample(deepOTM, n, theta, rand.NewSource(11))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mean, std := stat.MeanStdDev(batch.Shocks, nil)
		if math.Abs(mean-theta) > 5/math.Sqrt(n) {
			t.Errorf("θ=%g: expected shock mean ≈ θ, got %.5f", theta, mean)
		}
		if math.Abs(std-1) > 0.01 {
			t.Errorf("θ=%g: expected unit variance, got std %.5f", theta, std)
		}
	}
}

func TestSample_TerminalMatchesShocks(t *testing.T) {
	batch, err := Sample(deepOTM, 500, 1.2, rand.NewSource(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Len() != 500 {
		t.Fatalf("expected 500 paths, got %d", batch.Len())
	}
	if batch.Weights != nil {
		t.Error("sampler should not attach weights")
	}
	for i, z := range batch.Shocks {
		if want := TerminalPrice(deepOTM, z); batch.Terminal[i] != want {
			t.Fatalf("path %d: expected S_T=%g, got %g", i, want, batch.Terminal[i])
		}
		if batch.Terminal[i] <= 0 {
			t.Fatalf("path %d: terminal price must be positive", i)
		}
	}
}

func TestSample_InvalidSampleCount(t *testing.T) {
	for _, n := range []int{0, -5} {
		_, err := Sample(deepOTM, n, 0, rand.NewSource(1))
		if !errors.Is(err, ErrInvalidSampleCount) {
			t.Errorf("n=%d: expected ErrInvalidSampleCount, got %v", n, err)
		}
	}
}

func TestSample_DomainCheckedFirst(t *testing.T) {
	bad := deepOTM
	bad.Spot = 0
	_, err := Sample(bad, 0, 0, rand.NewSource(1))
	if !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain before sample count check, got %v", err)
	}
}

func TestTerminalPrice_ZeroShockIsForwardDrift(t *testing.T) {
	got := TerminalPrice(deepOTM, 0)
	want := 100 * math.Exp(0.05-0.5*0.04)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %g, got %g", want, got)
	}
}
