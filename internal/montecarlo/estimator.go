package montecarlo

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Mode selects the sampling measure of a pricing call.
type Mode string

const (
	ModeNaive      Mode = "naive"
	ModeImportance Mode = "importance"
)

// DefaultBlockSize is the number of paths drawn from one derived source.
const DefaultBlockSize = 1 << 16

// ParseMode converts a request string into a Mode. The empty string selects
// importance sampling.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNaive:
		return ModeNaive, nil
	case ModeImportance, "":
		return ModeImportance, nil
	}
	return "", fmt.Errorf("montecarlo: unknown mode %q (expected naive or importance)", s)
}

// Strategy is the sampling strategy of the estimator: the mean of the
// sampling distribution and whether draws are reweighted back to the
// risk-neutral measure. Both modes share payoff and discounting; only the
// strategy differs.
type Strategy struct {
	Shift    float64
	Reweight bool
}

// NaiveStrategy samples under the risk-neutral measure.
func NaiveStrategy() Strategy {
	return Strategy{}
}

// ImportanceStrategy samples from Normal(theta, 1) and reweights by L(Z).
func ImportanceStrategy(theta float64) Strategy {
	return Strategy{Shift: theta, Reweight: true}
}

// StrategyFor resolves the strategy for a mode. Importance sampling uses
// OptimalShift unless override is non-nil.
func StrategyFor(p Params, mode Mode, override *float64) (Strategy, error) {
	switch mode {
	case ModeNaive:
		return NaiveStrategy(), nil
	case ModeImportance:
		if override != nil {
			return ImportanceStrategy(*override), nil
		}
		theta, err := OptimalShift(p)
		if err != nil {
			return Strategy{}, err
		}
		return ImportanceStrategy(theta), nil
	}
	return Strategy{}, fmt.Errorf("montecarlo: unknown mode %q", mode)
}

// Mode returns the mode label of the strategy.
func (s Strategy) Mode() Mode {
	if s.Reweight {
		return ModeImportance
	}
	return ModeNaive
}

// Result is the outcome of one pricing call.
type Result struct {
	Price   float64 `json:"price"`
	StdErr  float64 `json:"standard_error"`
	Samples int     `json:"samples"`
	Shift   float64 `json:"shift"`
	Mode    Mode    `json:"mode"`
}

// ConfidenceInterval returns price ± z·StdErr.
func (r Result) ConfidenceInterval(z float64) (lo, hi float64) {
	return r.Price - z*r.StdErr, r.Price + z*r.StdErr
}

// CI95 returns the two-sided 95% confidence interval.
func (r Result) CI95() (lo, hi float64) {
	return r.ConfidenceInterval(1.96)
}

// Estimator runs Monte Carlo pricing calls. The zero value is ready to use.
//
// Paths are drawn in blocks of BlockSize; block i uses its own source seeded
// from the call seed and i, so a given seed yields the same result for any
// Workers value.
type Estimator struct {
	Workers   int // concurrent blocks; 0 means GOMAXPROCS
	BlockSize int // paths per block; 0 means DefaultBlockSize
}

func (e *Estimator) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Estimator) blockSize() int {
	if e.BlockSize > 0 {
		return e.BlockSize
	}
	return DefaultBlockSize
}

// Price estimates the discounted expected call payoff with n paths.
//
// The per-path quantity is exp(−rT) · max(S_T − K, 0), multiplied by L(Z)
// when the strategy reweights. Price is its mean and StdErr its population
// standard deviation divided by √n. Degenerate parameters return the
// intrinsic value with zero error and consume no randomness.
func (e *Estimator) Price(ctx context.Context, p Params, n int, s Strategy, seed uint64) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidSampleCount, n)
	}
	if math.IsNaN(s.Shift) || math.IsInf(s.Shift, 0) {
		return Result{}, fmt.Errorf("%w: shift is not finite", ErrDomain)
	}

	if p.Degenerate() {
		return Result{
			Price:   p.Intrinsic(),
			Samples: n,
			Mode:    s.Mode(),
		}, nil
	}

	batch := newPathBatch(n, s.Shift, s.Reweight)
	values := make([]float64, n)
	m := newTerminalMap(p)
	disc := p.Discount()
	size := e.blockSize()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for block, lo := 0, 0; lo < n; block, lo = block+1, lo+size {
		block, lo := block, lo
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(blockSeed(seed, block)))
			batch.fill(m, rng, lo, hi)
			for i := lo; i < hi; i++ {
				v := disc * CallPayoff(batch.Terminal[i], p.Strike)
				if batch.Weights != nil {
					v *= batch.Weights[i]
				}
				values[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	return Result{
		Price:   mean,
		StdErr:  std / math.Sqrt(float64(n)),
		Samples: n,
		Shift:   s.Shift,
		Mode:    s.Mode(),
	}, nil
}

// blockSeed derives the seed of a block with the splitmix64 finalizer.
func blockSeed(seed uint64, block int) uint64 {
	z := seed + uint64(block+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

var defaultEstimator = &Estimator{}

// Price runs a pricing call on the default estimator. In importance mode a
// nil shift selects OptimalShift; a non-nil shift overrides it.
func Price(ctx context.Context, p Params, n int, mode Mode, shift *float64, seed uint64) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	s, err := StrategyFor(p, mode, shift)
	if err != nil {
		return Result{}, err
	}
	return defaultEstimator.Price(ctx, p, n, s, seed)
}
