// Package benchmark measures the Monte Carlo estimators against a reference
// price: naive versus importance-sampled error, repeated seeded batches, and
// the likelihood-ratio mass check.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/atmx/option-engine/internal/montecarlo"
)

// MeasureTolerance is the allowed |mean(L) − 1| for the measure check.
const MeasureTolerance = 0.005

// ErrInvalidRuns is returned when a stress test is asked for no runs.
var ErrInvalidRuns = errors.New("benchmark: number of runs must be positive")

// Oracle supplies the reference price of an option.
type Oracle interface {
	Price(p montecarlo.Params) float64
}

// OracleFunc adapts a pricing function to Oracle.
type OracleFunc func(p montecarlo.Params) float64

// Price calls f(p).
func (f OracleFunc) Price(p montecarlo.Params) float64 {
	return f(p)
}

// Comparison holds a naive and an importance-sampled run at the same sample
// count and seed.
type Comparison struct {
	Params            montecarlo.Params `json:"params"`
	Naive             montecarlo.Result `json:"naive"`
	Importance        montecarlo.Result `json:"importance"`
	Reference         float64           `json:"reference"`
	VarianceReduction float64           `json:"variance_reduction"`
}

// NaiveError is the naive estimate minus the reference.
func (c Comparison) NaiveError() float64 {
	return c.Naive.Price - c.Reference
}

// ImportanceError is the importance-sampled estimate minus the reference.
func (c Comparison) ImportanceError() float64 {
	return c.Importance.Price - c.Reference
}

// VarianceReduction returns (naiveSE / isSE)². Two exact estimates give 1;
// an exact importance estimate against a noisy naive one gives +Inf.
func VarianceReduction(naiveSE, isSE float64) float64 {
	switch {
	case isSE == 0 && naiveSE == 0:
		return 1
	case isSE == 0:
		return math.Inf(1)
	}
	ratio := naiveSE / isSE
	return ratio * ratio
}

// Compare prices p in both modes with n paths each. Importance sampling uses
// the analytical shift.
func Compare(ctx context.Context, est *montecarlo.Estimator, p montecarlo.Params, n int, seed uint64, oracle Oracle) (Comparison, error) {
	naive, err := est.Price(ctx, p, n, montecarlo.NaiveStrategy(), seed)
	if err != nil {
		return Comparison{}, err
	}
	s, err := montecarlo.StrategyFor(p, montecarlo.ModeImportance, nil)
	if err != nil {
		return Comparison{}, err
	}
	is, err := est.Price(ctx, p, n, s, seed)
	if err != nil {
		return Comparison{}, err
	}

	return Comparison{
		Params:            p,
		Naive:             naive,
		Importance:        is,
		Reference:         oracle.Price(p),
		VarianceReduction: VarianceReduction(naive.StdErr, is.StdErr),
	}, nil
}

// StressRun is one batch of a stress test.
type StressRun struct {
	Index   int     `json:"index"`
	Seed    uint64  `json:"seed"`
	Price   float64 `json:"price"`
	StdErr  float64 `json:"standard_error"`
	Error   float64 `json:"error"`
	Covered bool    `json:"covered"` // reference inside the 95% CI
}

// StressReport summarizes repeated independent batches.
type StressReport struct {
	Mode      montecarlo.Mode `json:"mode"`
	Samples   int             `json:"samples"`
	Reference float64         `json:"reference"`
	Runs      []StressRun     `json:"runs"`
	Mean      float64         `json:"mean"`
	StdDev    float64         `json:"std_dev"`
	Coverage  float64         `json:"coverage"`
}

// Stress runs `runs` batches of n paths with seeds seed, seed+1, ... and
// reports the spread of the estimates around the reference. progress, when
// non-nil, is called after each batch with the number completed.
func Stress(
	ctx context.Context,
	est *montecarlo.Estimator,
	p montecarlo.Params,
	n, runs int,
	mode montecarlo.Mode,
	seed uint64,
	oracle Oracle,
	progress func(done int),
) (StressReport, error) {
	if runs <= 0 {
		return StressReport{}, fmt.Errorf("%w: got %d", ErrInvalidRuns, runs)
	}
	s, err := montecarlo.StrategyFor(p, mode, nil)
	if err != nil {
		return StressReport{}, err
	}

	ref := oracle.Price(p)
	report := StressReport{
		Mode:      mode,
		Samples:   n,
		Reference: ref,
		Runs:      make([]StressRun, 0, runs),
	}
	prices := make([]float64, 0, runs)
	covered := 0

	for i := 0; i < runs; i++ {
		runSeed := seed + uint64(i)
		res, err := est.Price(ctx, p, n, s, runSeed)
		if err != nil {
			return StressReport{}, err
		}
		lo, hi := res.CI95()
		in := ref >= lo && ref <= hi
		if in {
			covered++
		}
		report.Runs = append(report.Runs, StressRun{
			Index:   i + 1,
			Seed:    runSeed,
			Price:   res.Price,
			StdErr:  res.StdErr,
			Error:   res.Price - ref,
			Covered: in,
		})
		prices = append(prices, res.Price)
		if progress != nil {
			progress(i + 1)
		}
	}

	report.Mean, report.StdDev = stat.PopMeanStdDev(prices, nil)
	report.Coverage = float64(covered) / float64(runs)
	return report, nil
}

// MeasureReport is the outcome of the likelihood-ratio mass check.
type MeasureReport struct {
	Samples int     `json:"samples"`
	Shift   float64 `json:"shift"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Pass    bool    `json:"pass"`
}

// MeasureCheck draws n shocks from Normal(theta, 1) and verifies that the
// likelihood ratios average to 1 within MeasureTolerance.
func MeasureCheck(p montecarlo.Params, n int, theta float64, seed uint64) (MeasureReport, error) {
	batch, err := montecarlo.Sample(p, n, theta, rand.NewSource(seed))
	if err != nil {
		return MeasureReport{}, err
	}
	mean, std := stat.PopMeanStdDev(montecarlo.LikelihoodRatios(batch.Shocks, theta), nil)
	return MeasureReport{
		Samples: n,
		Shift:   theta,
		Mean:    mean,
		StdDev:  std,
		Pass:    math.Abs(mean-1) < MeasureTolerance,
	}, nil
}
