package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestPrice_ZeroMaturityIsIntrinsic(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want float64
	}{
		{"in the money", Params{Spot: 150, Strike: 140, Maturity: 0, Rate: 0.05, Volatility: 0.2}, 10},
		{"out of the money", Params{Spot: 100, Strike: 140, Maturity: 0, Rate: 0.05, Volatility: 0.2}, 0},
		{"zero vol", Params{Spot: 100, Strike: 140, Maturity: 0, Rate: 0.05, Volatility: 0}, 0},
		{"zero vol positive maturity", Params{Spot: 120, Strike: 100, Maturity: 1, Rate: 0.05, Volatility: 0}, 20},
	}
	for _, tt := range tests {
		for _, mode := range []Mode{ModeNaive, ModeImportance} {
			res, err := Price(context.Background(), tt.p, 1000, mode, nil, 1)
			if err != nil {
				t.Fatalf("%s/%s: unexpected error: %v", tt.name, mode, err)
			}
			if res.Price != tt.want {
				t.Errorf("%s/%s: expected price %g, got %g", tt.name, mode, tt.want, res.Price)
			}
			if res.StdErr != 0 {
				t.Errorf("%s/%s: expected zero standard error, got %g", tt.name, mode, res.StdErr)
			}
			if res.Mode != mode {
				t.Errorf("%s: expected mode %s, got %s", tt.name, mode, res.Mode)
			}
		}
	}
}

func TestPrice_DomainErrors(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"S=0", Params{Spot: 0, Strike: 140, Maturity: 1, Rate: 0.05, Volatility: 0.2}},
		{"K=-1", Params{Spot: 100, Strike: -1, Maturity: 1, Rate: 0.05, Volatility: 0.2}},
		{"sigma=-0.1", Params{Spot: 100, Strike: 140, Maturity: 1, Rate: 0.05, Volatility: -0.1}},
		{"T=-1", Params{Spot: 100, Strike: 140, Maturity: -1, Rate: 0.05, Volatility: 0.2}},
	}
	for _, tt := range tests {
		for _, mode := range []Mode{ModeNaive, ModeImportance} {
			_, err := Price(context.Background(), tt.p, 1000, mode, nil, 1)
			if !errors.Is(err, ErrDomain) {
				t.Errorf("%s/%s: expected ErrDomain, got %v", tt.name, mode, err)
			}
		}
	}
}

func TestPrice_InvalidSampleCount(t *testing.T) {
	for _, n := range []int{0, -5} {
		for _, mode := range []Mode{ModeNaive, ModeImportance} {
			_, err := Price(context.Background(), deepOTM, n, mode, nil, 1)
			if !errors.Is(err, ErrInvalidSampleCount) {
				t.Errorf("n=%d/%s: expected ErrInvalidSampleCount, got %v", n, mode, err)
			}
		}
	}
}

func TestPrice_NonFiniteShiftRejected(t *testing.T) {
	inf := math.Inf(1)
	_, err := Price(context.Background(), deepOTM, 100, ModeImportance, &inf, 1)
	if !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain for infinite shift, got %v", err)
	}
}

func TestPrice_ImportanceReducesVarianceDeepOTM(t *testing.T) {
	ctx := context.Background()
	naive, err := Price(ctx, deepOTM, 10_000, ModeNaive, nil, 42)
	if err != nil {
		t.Fatalf("naive: unexpected error: %v", err)
	}
	is, err := Price(ctx, deepOTM, 10_000, ModeImportance, nil, 42)
	if err != nil {
		t.Fatalf("importance: unexpected error: %v", err)
	}
	if is.StdErr >= naive.StdErr {
		t.Fatalf("importance SE %.6f should be below naive SE %.6f", is.StdErr, naive.StdErr)
	}
	if vrf := math.Pow(naive.StdErr/is.StdErr, 2); vrf <= 10 {
		t.Errorf("expected variance reduction factor > 10, got %.2f", vrf)
	}
	if math.Abs(is.Shift-1.5324) > 0.001 {
		t.Errorf("expected analytical shift ≈ 1.5324, got %.6f", is.Shift)
	}
}

func TestPrice_ModesAgree(t *testing.T) {
	ctx := context.Background()
	naive, err := Price(ctx, deepOTM, 400_000, ModeNaive, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	is, err := Price(ctx, deepOTM, 400_000, ModeImportance, nil, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tol := 4 * math.Hypot(naive.StdErr, is.StdErr)
	if math.Abs(naive.Price-is.Price) > tol {
		t.Errorf("modes disagree: naive=%.5f±%.5f importance=%.5f±%.5f",
			naive.Price, naive.StdErr, is.Price, is.StdErr)
	}
}

func TestPrice_ShiftOverride(t *testing.T) {
	shift := 1.8
	res, err := Price(context.Background(), deepOTM, 5000, ModeImportance, &shift, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Shift != 1.8 {
		t.Errorf("expected override shift 1.8, got %g", res.Shift)
	}
}

func TestEstimator_DeterministicAcrossWorkers(t *testing.T) {
	ctx := context.Background()
	s := ImportanceStrategy(1.53)

	single := &Estimator{Workers: 1, BlockSize: 1000}
	many := &Estimator{Workers: 8, BlockSize: 1000}

	a, err := single.Price(ctx, deepOTM, 25_500, s, 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := many.Price(ctx, deepOTM, 25_500, s, 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("same seed should give identical results: %+v vs %+v", a, b)
	}

	c, _ := many.Price(ctx, deepOTM, 25_500, s, 78)
	if c.Price == a.Price {
		t.Error("different seeds should give different estimates")
	}
}

func TestEstimator_ZeroShiftImportanceEqualsNaive(t *testing.T) {
	ctx := context.Background()
	est := &Estimator{}
	naive, err := est.Price(ctx, deepOTM, 50_000, NaiveStrategy(), 13)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weighted, err := est.Price(ctx, deepOTM, 50_000, ImportanceStrategy(0), 13)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if naive.Price != weighted.Price || naive.StdErr != weighted.StdErr {
		t.Errorf("unit weights should not change the estimate: %+v vs %+v", naive, weighted)
	}
}

func TestEstimator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Estimator{}).Price(ctx, deepOTM, 10_000, NaiveStrategy(), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestResult_CI95(t *testing.T) {
	r := Result{Price: 1, StdErr: 0.1}
	lo, hi := r.CI95()
	if math.Abs(lo-0.804) > 1e-12 || math.Abs(hi-1.196) > 1e-12 {
		t.Errorf("expected [0.804, 1.196], got [%g, %g]", lo, hi)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"naive", ModeNaive, false},
		{"importance", ModeImportance, false},
		{"", ModeImportance, false},
		{"antithetic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q): unexpected error state %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
