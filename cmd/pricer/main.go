// Command pricer runs the Monte Carlo pricing diagnostics from the command
// line: single estimates, the analytical shift, the Black-Scholes reference,
// naive versus importance comparisons, repeated-batch stress tests, the
// likelihood-ratio mass check and the shifted-distribution chart.
//
// Usage:
//
//	pricer <command> [flags]
//
// Commands: price, shift, reference, compare, stress, measure, plot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhhuango/json"

	"github.com/atmx/option-engine/internal/contract"
	"github.com/atmx/option-engine/internal/montecarlo"
)

const usage = `usage: pricer <command> [flags]

commands:
  price      Monte Carlo estimate (naive or importance)
  shift      analytical importance-sampling shift
  reference  Black-Scholes price
  compare    naive vs importance at the same sample count and seed
  stress     repeated seeded batches against the reference
  measure    likelihood-ratio mass check, mean L(Z) = 1
  plot       terminal-price histograms under both measures

run "pricer <command> -h" for command flags`

var errUsage = errors.New("usage")

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Optional .env with defaults for the pricing flags.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Warn("failed to load .env", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error("pricer failed", "err", err)
		os.Exit(1)
	}
}

// run dispatches one subcommand. Results go to stdout; progress bars go to
// stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return cmd(ctx, args[1:], stdout, stderr)
}

type command func(ctx context.Context, args []string, stdout, stderr io.Writer) error

var commands = map[string]command{
	"price":     runPrice,
	"shift":     runShift,
	"reference": runReference,
	"compare":   runCompare,
	"stress":    runStress,
	"measure":   runMeasure,
	"plot":      runPlot,
}

// --- Shared flags ---

// marketFlags are the market inputs every command accepts. Defaults are the
// deep out-of-the-money benchmark case.
type marketFlags struct {
	spot, strike, maturity, rate, vol float64
	ticker, asOf                      string
}

func (m *marketFlags) register(fs *flag.FlagSet) {
	fs.Float64Var(&m.spot, "spot", envFloat("PRICER_SPOT", 100), "spot price S")
	fs.Float64Var(&m.strike, "strike", envFloat("PRICER_STRIKE", 140), "strike K")
	fs.Float64Var(&m.maturity, "maturity", envFloat("PRICER_MATURITY", 1), "maturity T in years")
	fs.Float64Var(&m.rate, "rate", envFloat("PRICER_RATE", 0.05), "risk-free rate r")
	fs.Float64Var(&m.vol, "vol", envFloat("PRICER_VOL", 0.2), "volatility σ")
	fs.StringVar(&m.ticker, "contract", "", "price a ticker EC-{strike}-{YYYYMMDD} instead of -strike/-maturity")
	fs.StringVar(&m.asOf, "asof", "", "valuation date YYYY-MM-DD for -contract (default today)")
}

func (m *marketFlags) params() (montecarlo.Params, error) {
	p := montecarlo.Params{
		Spot:       m.spot,
		Strike:     m.strike,
		Maturity:   m.maturity,
		Rate:       m.rate,
		Volatility: m.vol,
	}
	if m.ticker == "" {
		return p, p.Validate()
	}
	c, err := contract.ParseTicker(m.ticker)
	if err != nil {
		return montecarlo.Params{}, err
	}
	asOf := time.Now().UTC()
	if m.asOf != "" {
		if asOf, err = time.Parse("2006-01-02", m.asOf); err != nil {
			return montecarlo.Params{}, fmt.Errorf("invalid -asof %q: %w", m.asOf, err)
		}
	}
	p.Strike = c.StrikeFloat()
	p.Maturity = c.TimeToMaturity(asOf)
	return p, p.Validate()
}

// runFlags configure the estimator.
type runFlags struct {
	samples   int
	seed      uint64
	workers   int
	blockSize int
	out       string
}

func (r *runFlags) register(fs *flag.FlagSet, samples int) {
	fs.IntVar(&r.samples, "samples", samples, "number of paths")
	fs.Uint64Var(&r.seed, "seed", 42, "random seed")
	fs.IntVar(&r.workers, "workers", 0, "concurrent blocks (0 = GOMAXPROCS)")
	fs.IntVar(&r.blockSize, "block", montecarlo.DefaultBlockSize, "paths per seeded block")
	fs.StringVar(&r.out, "out", "", "also write the result as JSON to this file")
}

func (r *runFlags) estimator() *montecarlo.Estimator {
	return &montecarlo.Estimator{Workers: r.workers, BlockSize: r.blockSize}
}

// optionalFloat is a flag that records whether it was set.
type optionalFloat struct {
	v   float64
	set bool
}

func (o *optionalFloat) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatFloat(o.v, 'g', -1, 64)
}

func (o *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.v, o.set = v, true
	return nil
}

func (o *optionalFloat) ptr() *float64 {
	if !o.set {
		return nil
	}
	return &o.v
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// writeJSON writes v as indented JSON when path is set.
func writeJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("report written", "path", path)
	return nil
}
