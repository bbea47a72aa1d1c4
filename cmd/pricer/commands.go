package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"golang.org/x/exp/rand"

	"github.com/atmx/option-engine/internal/benchmark"
	"github.com/atmx/option-engine/internal/blackscholes"
	"github.com/atmx/option-engine/internal/chart"
	"github.com/atmx/option-engine/internal/montecarlo"
)

var oracle = benchmark.OracleFunc(blackscholes.Call)

func runPrice(ctx context.Context, args []string, stdout, _ io.Writer) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	var m marketFlags
	var r runFlags
	var shift optionalFloat
	m.register(fs)
	r.register(fs, 100_000)
	mode := fs.String("mode", "importance", "naive or importance")
	fs.Var(&shift, "shift", "override the analytical shift θ")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := m.params()
	if err != nil {
		return err
	}
	md, err := montecarlo.ParseMode(*mode)
	if err != nil {
		return err
	}
	s, err := montecarlo.StrategyFor(p, md, shift.ptr())
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := r.estimator().Price(ctx, p, r.samples, s, r.seed)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	lo, hi := res.CI95()

	fmt.Fprintf(stdout, "mode:     %s\n", res.Mode)
	fmt.Fprintf(stdout, "shift:    %.6f\n", res.Shift)
	fmt.Fprintf(stdout, "samples:  %d\n", res.Samples)
	fmt.Fprintf(stdout, "price:    %.6f\n", res.Price)
	fmt.Fprintf(stdout, "std err:  %.6f\n", res.StdErr)
	fmt.Fprintf(stdout, "95%% CI:   [%.6f, %.6f]\n", lo, hi)
	fmt.Fprintf(stdout, "elapsed:  %s\n", elapsed.Round(time.Millisecond))
	return writeJSON(r.out, res)
}

func runShift(_ context.Context, args []string, stdout, _ io.Writer) error {
	fs := flag.NewFlagSet("shift", flag.ContinueOnError)
	var m marketFlags
	m.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := m.params()
	if err != nil {
		return err
	}
	theta, err := montecarlo.OptimalShift(p)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "shift: %.6f\n", theta)
	fmt.Fprintf(stdout, "S_T at shifted mean: %.4f (strike %.4f)\n", montecarlo.TerminalPrice(p, theta), p.Strike)
	return nil
}

func runReference(_ context.Context, args []string, stdout, _ io.Writer) error {
	fs := flag.NewFlagSet("reference", flag.ContinueOnError)
	var m marketFlags
	m.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := m.params()
	if err != nil {
		return err
	}
	d1, d2 := blackscholes.D1D2(p)
	fmt.Fprintf(stdout, "price: %.6f\n", blackscholes.Call(p))
	fmt.Fprintf(stdout, "d1:    %.6f\n", d1)
	fmt.Fprintf(stdout, "d2:    %.6f\n", d2)
	fmt.Fprintf(stdout, "P(S_T > K): %.6f\n", blackscholes.ExerciseProbability(p))
	return nil
}

func runCompare(ctx context.Context, args []string, stdout, _ io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	var m marketFlags
	var r runFlags
	m.register(fs)
	r.register(fs, 10_000)
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := m.params()
	if err != nil {
		return err
	}

	cmp, err := benchmark.Compare(ctx, r.estimator(), p, r.samples, r.seed, oracle)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "reference (Black-Scholes): %.6f\n", cmp.Reference)
	fmt.Fprintf(stdout, "%-11s %10s %10s %10s\n", "mode", "price", "std err", "error")
	fmt.Fprintf(stdout, "%-11s %10.6f %10.6f %+10.6f\n", "naive", cmp.Naive.Price, cmp.Naive.StdErr, cmp.NaiveError())
	fmt.Fprintf(stdout, "%-11s %10.6f %10.6f %+10.6f\n", "importance", cmp.Importance.Price, cmp.Importance.StdErr, cmp.ImportanceError())
	fmt.Fprintf(stdout, "shift: %.6f  variance reduction: %.2fx\n", cmp.Importance.Shift, cmp.VarianceReduction)
	return writeJSON(r.out, cmp)
}

func runStress(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stress", flag.ContinueOnError)
	var m marketFlags
	var r runFlags
	m.register(fs)
	r.register(fs, 100_000)
	runs := fs.Int("runs", 100, "number of independent batches")
	mode := fs.String("mode", "naive", "naive or importance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := m.params()
	if err != nil {
		return err
	}
	md, err := montecarlo.ParseMode(*mode)
	if err != nil {
		return err
	}
	if *runs <= 0 {
		return fmt.Errorf("%w: got %d", benchmark.ErrInvalidRuns, *runs)
	}

	progress := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(stderr))
	bar := progress.AddBar(int64(*runs),
		mpb.PrependDecorators(
			decor.Name("Stress "+string(md)),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
	)

	report, err := benchmark.Stress(ctx, r.estimator(), p, r.samples, *runs, md, r.seed, oracle,
		func(done int) { bar.SetCurrent(int64(done)) })
	if err != nil {
		bar.Abort(false)
		progress.Wait()
		return err
	}
	progress.Wait()

	fmt.Fprintf(stdout, "reference: %.6f\n", report.Reference)
	fmt.Fprintf(stdout, "runs: %d x %d paths (%s)\n", len(report.Runs), report.Samples, report.Mode)
	fmt.Fprintf(stdout, "mean price: %.6f  std dev: %.6f  bias: %+.6f\n",
		report.Mean, report.StdDev, report.Mean-report.Reference)
	fmt.Fprintf(stdout, "95%% CI coverage: %.1f%%\n", 100*report.Coverage)
	return writeJSON(r.out, report)
}

func runMeasure(_ context.Context, args []string, stdout, _ io.Writer) error {
	fs := flag.NewFlagSet("measure", flag.ContinueOnError)
	var m marketFlags
	var r runFlags
	var theta optionalFloat
	m.register(fs)
	r.register(fs, 1_000_000)
	fs.Var(&theta, "theta", "shift to check (default analytical)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := m.params()
	if err != nil {
		return err
	}
	shift := theta.v
	if !theta.set {
		if shift, err = montecarlo.OptimalShift(p); err != nil {
			return err
		}
	}

	report, err := benchmark.MeasureCheck(p, r.samples, shift, r.seed)
	if err != nil {
		return err
	}
	status := "PASS"
	if !report.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(stdout, "shift: %.6f  samples: %d\n", report.Shift, report.Samples)
	fmt.Fprintf(stdout, "mean L(Z): %.6f  std dev: %.6f  [%s, tolerance %g]\n",
		report.Mean, report.StdDev, status, benchmark.MeasureTolerance)
	if err := writeJSON(r.out, report); err != nil {
		return err
	}
	if !report.Pass {
		return fmt.Errorf("likelihood ratio mean %.6f outside 1 ± %g", report.Mean, benchmark.MeasureTolerance)
	}
	return nil
}

func runPlot(_ context.Context, args []string, stdout, _ io.Writer) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	var m marketFlags
	var theta optionalFloat
	m.register(fs)
	samples := fs.Int("samples", 100_000, "paths per distribution")
	seed := fs.Uint64("seed", 42, "random seed")
	out := fs.String("o", "shift_distribution.png", "output file (.png, .svg, .pdf)")
	fs.Var(&theta, "theta", "shift to draw (default analytical)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := m.params()
	if err != nil {
		return err
	}
	shift := theta.v
	if !theta.set {
		if shift, err = montecarlo.OptimalShift(p); err != nil {
			return err
		}
	}

	naive, err := montecarlo.Sample(p, *samples, 0, rand.NewSource(*seed))
	if err != nil {
		return err
	}
	shifted, err := montecarlo.Sample(p, *samples, shift, rand.NewSource(*seed+1))
	if err != nil {
		return err
	}
	pl, err := chart.Distributions(naive.Terminal, shifted.Terminal, p.Strike, shift)
	if err != nil {
		return err
	}
	if err := chart.Save(pl, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (shift %.4f)\n", *out, shift)
	return nil
}
