package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xhhuango/json"

	"github.com/atmx/option-engine/internal/benchmark"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, io.Discard)
	return out.String(), err
}

func TestRun_Usage(t *testing.T) {
	if _, err := runCmd(t); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error without a command, got %v", err)
	}
	if _, err := runCmd(t, "antithetic"); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error for unknown command, got %v", err)
	}
}

func TestRun_Shift(t *testing.T) {
	out, err := runCmd(t, "shift")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "shift: 1.532361") {
		t.Errorf("expected analytical shift in output, got:\n%s", out)
	}
}

func TestRun_ShiftContract(t *testing.T) {
	out, err := runCmd(t, "shift", "-contract", "EC-140-20271016", "-asof", "2026-10-16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "shift: 1.532361") {
		t.Errorf("expected analytical shift in output, got:\n%s", out)
	}
}

func TestRun_Reference(t *testing.T) {
	out, err := runCmd(t, "reference")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "price: 0.784965") {
		t.Errorf("expected Black-Scholes price in output, got:\n%s", out)
	}
}

func TestRun_DomainError(t *testing.T) {
	if _, err := runCmd(t, "price", "-spot", "0"); err == nil {
		t.Error("expected domain error for zero spot")
	}
}

func TestRun_PriceWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.json")
	out, err := runCmd(t, "price", "-samples", "5000", "-seed", "7", "-out", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "mode:     importance") {
		t.Errorf("expected importance mode, got:\n%s", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var res struct {
		Price   float64 `json:"price"`
		Samples int     `json:"samples"`
		Mode    string  `json:"mode"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.Samples != 5000 || res.Mode != "importance" || res.Price <= 0 {
		t.Errorf("unexpected report %+v", res)
	}
}

func TestRun_Compare(t *testing.T) {
	out, err := runCmd(t, "compare", "-samples", "10000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"reference (Black-Scholes): 0.784965", "naive", "importance", "variance reduction"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRun_Stress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stress.json")
	_, err := runCmd(t, "stress", "-runs", "4", "-samples", "2000", "-out", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var report benchmark.StressReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(report.Runs) != 4 {
		t.Errorf("expected 4 runs, got %d", len(report.Runs))
	}
}

func TestRun_StressInvalidRuns(t *testing.T) {
	_, err := runCmd(t, "stress", "-runs", "0")
	if !errors.Is(err, benchmark.ErrInvalidRuns) {
		t.Errorf("expected ErrInvalidRuns, got %v", err)
	}
}

func TestRun_Measure(t *testing.T) {
	out, err := runCmd(t, "measure", "-theta", "0.5", "-samples", "200000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "PASS") {
		t.Errorf("expected PASS, got:\n%s", out)
	}
}

func TestRun_Plot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shift.svg")
	if _, err := runCmd(t, "plot", "-samples", "2000", "-o", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("expected non-empty chart at %s, err=%v", path, err)
	}
}
