// Package pricing provides the HTTP handlers for Monte Carlo option pricing:
// single runs, naive versus importance comparisons, the analytical shift,
// the Black-Scholes reference, and run history.
//
// Monetary values in responses use shopspring/decimal.
package pricing

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/option-engine/internal/benchmark"
	"github.com/atmx/option-engine/internal/blackscholes"
	"github.com/atmx/option-engine/internal/budget"
	"github.com/atmx/option-engine/internal/contract"
	"github.com/atmx/option-engine/internal/events"
	"github.com/atmx/option-engine/internal/metrics"
	"github.com/atmx/option-engine/internal/model"
	"github.com/atmx/option-engine/internal/montecarlo"
	"github.com/atmx/option-engine/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 16
)

// Service handles pricing requests. Estimator calls run concurrently; the
// sample limiter bounds the total work admitted at once.
type Service struct {
	store          store.Store
	limiter        *budget.SampleLimiter
	est            *montecarlo.Estimator
	publisher      events.Publisher
	wsHub          *WSHub // optional WebSocket hub for run broadcasts
	oracle         benchmark.Oracle
	defaultSamples int
	now            func() time.Time
}

// Options configures a Service. Nil Publisher and Hub disable event
// publication and WebSocket broadcasts.
type Options struct {
	Store          store.Store
	Limiter        *budget.SampleLimiter
	Estimator      *montecarlo.Estimator
	Publisher      events.Publisher
	Hub            *WSHub
	DefaultSamples int
}

// NewService creates a new pricing service.
func NewService(opts Options) *Service {
	pub := opts.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	est := opts.Estimator
	if est == nil {
		est = &montecarlo.Estimator{}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = budget.NewSampleLimiter(0, 0)
	}
	samples := opts.DefaultSamples
	if samples <= 0 {
		samples = 100_000
	}
	return &Service{
		store:          opts.Store,
		limiter:        limiter,
		est:            est,
		publisher:      pub,
		wsHub:          opts.Hub,
		oracle:         benchmark.OracleFunc(blackscholes.Call),
		defaultSamples: samples,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// --- Request/Response types ---

// PriceRequest is the JSON body for POST /price and POST /compare.
//
// When Contract is set, strike and maturity come from the ticker and AsOf
// (default now); Strike and Maturity in the body are ignored.
type PriceRequest struct {
	Spot       decimal.Decimal `json:"spot"`
	Strike     decimal.Decimal `json:"strike"`
	Maturity   float64         `json:"maturity"` // years
	Rate       float64         `json:"rate"`
	Volatility float64         `json:"volatility"`
	Contract   string          `json:"contract,omitempty"` // EC-{strike}-{YYYYMMDD}
	AsOf       *time.Time      `json:"as_of,omitempty"`
	Samples    int             `json:"samples"`         // 0 → server default
	Mode       string          `json:"mode"`            // "naive" or "importance" (default)
	Shift      *float64        `json:"shift,omitempty"` // overrides the analytical shift
	Seed       *uint64         `json:"seed,omitempty"`  // nil → random seed
}

// ShiftResponse is returned from GET /shift.
type ShiftResponse struct {
	Params montecarlo.Params `json:"params"`
	Shift  float64           `json:"shift"`
}

// ReferenceResponse is returned from GET /reference.
type ReferenceResponse struct {
	Params              montecarlo.Params `json:"params"`
	Price               decimal.Decimal   `json:"price"`
	ExerciseProbability float64           `json:"exercise_probability"`
}

// params resolves the market parameters of a request.
func (req *PriceRequest) params(now time.Time) (montecarlo.Params, error) {
	p := montecarlo.Params{
		Spot:       req.Spot.InexactFloat64(),
		Strike:     req.Strike.InexactFloat64(),
		Maturity:   req.Maturity,
		Rate:       req.Rate,
		Volatility: req.Volatility,
	}
	if req.Contract == "" {
		return p, nil
	}
	c, err := contract.ParseTicker(req.Contract)
	if err != nil {
		return montecarlo.Params{}, err
	}
	asOf := now
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	p.Strike = c.StrikeFloat()
	p.Maturity = c.TimeToMaturity(asOf)
	return p, nil
}

// --- HTTP Handlers ---

// Price handles POST /api/v1/price
// Runs one Monte Carlo estimate and records it. Seeded requests whose run
// key already exists are answered from the store.
func (s *Service) Price(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mode, err := montecarlo.ParseMode(req.Mode)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := req.params(s.now())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	strategy, err := montecarlo.StrategyFor(p, mode, req.Shift)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	n := req.Samples
	if n == 0 {
		n = s.defaultSamples
	}

	ctx := r.Context()
	id := uuid.New()
	seed := seedFrom(id)

	// --- Reuse a seeded run ---
	if req.Seed != nil {
		seed = *req.Seed
		shift := strategy.Shift
		if p.Degenerate() {
			shift = 0
		}
		key := model.RunKey(string(mode), p, n, shift, seed)
		existing, err := s.store.GetRunByKey(ctx, key)
		switch {
		case err == nil:
			metrics.CacheHits.Inc()
			writeJSON(w, http.StatusOK, existing)
			return
		case !errors.Is(err, store.ErrNotFound):
			slog.Error("run lookup failed", "key", key, "err", err)
			writeError(w, "failed to look up run", http.StatusInternalServerError)
			return
		}
	}

	run, err := s.execute(ctx, id.String(), req.Contract, p, n, strategy, seed)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if err := s.record(ctx, run); err != nil {
		writeError(w, "failed to record run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

// Compare handles POST /api/v1/compare
// Prices the same option naively and with the analytical shift at the same
// sample count and seed, and reports both against the reference.
func (s *Service) Compare(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := req.params(s.now())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	n := req.Samples
	if n == 0 {
		n = s.defaultSamples
	}
	naiveID, isID := uuid.New(), uuid.New()
	seed := seedFrom(naiveID)
	if req.Seed != nil {
		seed = *req.Seed
	}

	ctx := r.Context()
	if err := s.acquire(n, n); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	start := time.Now()
	cmp, err := benchmark.Compare(ctx, s.est, p, n, seed, s.oracle)
	elapsed := time.Since(start)
	s.release(n, n)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	// Each run is charged half of the combined wall time.
	now := s.now()
	naive := model.NewPricingRun(naiveID.String(), req.Contract, p, cmp.Naive, seed, elapsed/2, now)
	is := model.NewPricingRun(isID.String(), req.Contract, p, cmp.Importance, seed, elapsed/2, now)
	s.observe(cmp.Naive, elapsed/2)
	s.observe(cmp.Importance, elapsed/2)
	if !math.IsInf(cmp.VarianceReduction, 0) {
		metrics.LastVarianceReduction.Set(cmp.VarianceReduction)
	}

	for _, run := range []*model.PricingRun{naive, is} {
		if err := s.record(ctx, run); err != nil {
			writeError(w, "failed to record run", http.StatusInternalServerError)
			return
		}
	}

	ref := decimal.NewFromFloat(cmp.Reference)
	resp := model.Comparison{
		Naive:             *naive,
		Importance:        *is,
		Reference:         ref,
		NaiveError:        naive.Price.Sub(ref),
		ImportanceError:   is.Price.Sub(ref),
		VarianceReduction: cmp.VarianceReduction,
	}
	if math.IsInf(resp.VarianceReduction, 0) {
		// JSON has no infinity; report an exact importance estimate as 0.
		resp.VarianceReduction = 0
	}

	slog.Info("comparison completed",
		"naive_id", naive.ID,
		"importance_id", is.ID,
		"samples", n,
		"naive_price", naive.Price.String(),
		"importance_price", is.Price.String(),
		"reference", ref.String(),
		"variance_reduction", cmp.VarianceReduction,
	)

	writeJSON(w, http.StatusOK, resp)
}

// Shift handles GET /api/v1/shift
// Returns the analytical importance-sampling shift.
func (s *Service) Shift(w http.ResponseWriter, r *http.Request) {
	p, err := s.paramsFromQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	theta, err := montecarlo.OptimalShift(p)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, ShiftResponse{Params: p, Shift: theta})
}

// Reference handles GET /api/v1/reference
// Returns the closed-form Black-Scholes price.
func (s *Service) Reference(w http.ResponseWriter, r *http.Request) {
	p, err := s.paramsFromQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, ReferenceResponse{
		Params:              p,
		Price:               decimal.NewFromFloat(blackscholes.Call(p)),
		ExerciseProbability: blackscholes.ExerciseProbability(p),
	})
}

// ListRuns handles GET /api/v1/runs
// Returns recent runs, newest first, bounded by ?limit=.
func (s *Service) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.PricingRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/v1/runs/{runID}
func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// --- Execution ---

// execute admits, prices and times one run.
func (s *Service) execute(ctx context.Context, id, ticker string, p montecarlo.Params, n int, strategy montecarlo.Strategy, seed uint64) (*model.PricingRun, error) {
	if err := s.acquire(n); err != nil {
		return nil, err
	}
	defer s.release(n)

	start := time.Now()
	res, err := s.est.Price(ctx, p, n, strategy, seed)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	s.observe(res, elapsed)
	return model.NewPricingRun(id, ticker, p, res, seed, elapsed, s.now()), nil
}

// record persists a run, then publishes and broadcasts it. Publication
// failures are logged; the run is already durable.
func (s *Service) record(ctx context.Context, run *model.PricingRun) error {
	if err := s.store.CreateRun(ctx, run); err != nil {
		slog.Error("failed to record run", "id", run.ID, "err", err)
		return err
	}

	slog.Info("run completed",
		"id", run.ID,
		"key", run.Key,
		"mode", run.Mode,
		"samples", run.Samples,
		"shift", run.Shift,
		"price", run.Price.String(),
		"std_err", run.StdErr.String(),
		"elapsed_ms", run.ElapsedMS,
	)

	if err := s.publisher.PublishRun(ctx, run); err != nil {
		slog.Warn("failed to publish run", "id", run.ID, "err", err)
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(events.RunEvent{Type: events.TypeRunCompleted, Run: run})
	}
	return nil
}

// acquire reserves sample capacity for each count. On failure nothing stays
// reserved.
func (s *Service) acquire(counts ...int) error {
	for i, n := range counts {
		if err := s.limiter.Acquire(int64(n)); err != nil {
			s.release(counts[:i]...)
			reason := "capacity"
			if errors.Is(err, budget.ErrRequestTooLarge) {
				reason = "too_large"
			}
			metrics.BudgetRejections.WithLabelValues(reason).Inc()
			return err
		}
	}
	metrics.SamplesInFlight.Set(float64(s.limiter.InFlight()))
	return nil
}

func (s *Service) release(counts ...int) {
	for _, n := range counts {
		s.limiter.Release(int64(n))
	}
	metrics.SamplesInFlight.Set(float64(s.limiter.InFlight()))
}

func (s *Service) observe(res montecarlo.Result, elapsed time.Duration) {
	mode := string(res.Mode)
	metrics.RunsTotal.WithLabelValues(mode).Inc()
	metrics.PathsTotal.WithLabelValues(mode).Add(float64(res.Samples))
	metrics.PricingLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
	metrics.LastStdErr.WithLabelValues(mode).Set(res.StdErr)
}

// --- Helpers ---

// paramsFromQuery reads spot, strike, maturity, rate and volatility from the
// query string, or spot, rate, volatility plus contract and as_of.
func (s *Service) paramsFromQuery(r *http.Request) (montecarlo.Params, error) {
	q := r.URL.Query()
	var req PriceRequest
	var err error

	if req.Spot, err = decimal.NewFromString(q.Get("spot")); err != nil {
		return montecarlo.Params{}, errors.New("spot is required")
	}
	if req.Rate, err = queryFloat(q.Get("rate"), "rate"); err != nil {
		return montecarlo.Params{}, err
	}
	if req.Volatility, err = queryFloat(q.Get("volatility"), "volatility"); err != nil {
		return montecarlo.Params{}, err
	}

	if req.Contract = q.Get("contract"); req.Contract != "" {
		if v := q.Get("as_of"); v != "" {
			asOf, err := parseDate(v)
			if err != nil {
				return montecarlo.Params{}, err
			}
			req.AsOf = &asOf
		}
		return req.params(s.now())
	}

	if req.Strike, err = decimal.NewFromString(q.Get("strike")); err != nil {
		return montecarlo.Params{}, errors.New("strike is required")
	}
	if req.Maturity, err = queryFloat(q.Get("maturity"), "maturity"); err != nil {
		return montecarlo.Params{}, err
	}
	return req.params(s.now())
}

func queryFloat(v, name string) (float64, error) {
	if v == "" {
		return 0, errors.New(name + " is required")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return f, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, errors.New("as_of must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

// seedFrom derives a seed from the random half of a v4 UUID.
func seedFrom(id uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(id[8:])
}

// statusFor maps pricing errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, montecarlo.ErrDomain),
		errors.Is(err, montecarlo.ErrInvalidSampleCount),
		errors.Is(err, contract.ErrInvalidTicker),
		errors.Is(err, contract.ErrInvalidStrike):
		return http.StatusBadRequest
	case errors.Is(err, budget.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, budget.ErrCapacityExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
