package chart

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/atmx/option-engine/internal/montecarlo"
)

func samples(t *testing.T, theta float64) []float64 {
	t.Helper()
	p := montecarlo.Params{Spot: 100, Strike: 140, Maturity: 1, Rate: 0.05, Volatility: 0.2}
	b, err := montecarlo.Sample(p, 5000, theta, rand.NewSource(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b.Terminal
}

func TestDistributions_SavePNGAndSVG(t *testing.T) {
	p, err := Distributions(samples(t, 0), samples(t, 1.53), 140, 1.53)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := t.TempDir()
	for _, name := range []string{"shift.png", "shift.svg"} {
		path := filepath.Join(dir, name)
		if err := Save(p, path); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("%s: not written: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s: empty file", name)
		}
	}
}

func TestDistributions_EmptySample(t *testing.T) {
	if _, err := Distributions(nil, []float64{1, 2}, 140, 0); err == nil {
		t.Error("expected error for empty naive sample")
	}
}

func TestSave_UnknownExtension(t *testing.T) {
	p, err := Distributions([]float64{90, 100, 110}, []float64{130, 140, 150}, 140, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Save(p, filepath.Join(t.TempDir(), "shift.unknown")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestHistogram_Normalized(t *testing.T) {
	h, err := histogram(samples(t, 0), 1e9, naiveColor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var area float64
	for _, b := range h.Bins {
		area += b.Weight * (b.Max - b.Min)
	}
	if area < 0.999 || area > 1.001 {
		t.Errorf("expected unit area, got %g", area)
	}
}
