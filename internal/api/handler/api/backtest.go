// Package api implements the JSON handlers of the /api/v1 routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/algotrade/internal/api/job"
	"github.com/newthinker/algotrade/internal/api/response"
	"github.com/newthinker/algotrade/internal/backtest"
	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/report"
	"github.com/newthinker/algotrade/internal/storage/run"
	"go.uber.org/zap"
)

const (
	jobType        = "backtest"
	maxRequestBody = 1 << 20
)

// BacktestRequest is the request body for a backtest.
type BacktestRequest struct {
	Symbol      string             `json:"symbol"`
	Start       string             `json:"start,omitempty"`
	End         string             `json:"end,omitempty"`
	Strategy    string             `json:"strategy"`
	Params      map[string]float64 `json:"params,omitempty"`
	Interval    string             `json:"interval,omitempty"`
	CostBps     *float64           `json:"cost_bps,omitempty"`
	SlippageBps *float64           `json:"slippage_bps,omitempty"`
	RFRatePct   *float64           `json:"rf_rate_pct,omitempty"`
	Refresh     bool               `json:"refresh,omitempty"`
}

// Runner executes backtests.
type Runner interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Result, error)
}

// JobsRecorder receives the number of active jobs.
type JobsRecorder interface {
	SetJobsActive(jobType string, count int)
}

// Defaults fill request fields the client omits.
type Defaults struct {
	Strategy    string
	CostBps     float64
	SlippageBps float64
	RFRatePct   float64
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	runner   Runner
	runs     run.Store // nil disables run history
	jobs     *job.Store
	defaults Defaults
	timeout  time.Duration
	recorder JobsRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// BacktestOption configures a BacktestHandler.
type BacktestOption func(*BacktestHandler)

// WithRunStore persists every successful run.
func WithRunStore(s run.Store) BacktestOption {
	return func(h *BacktestHandler) { h.runs = s }
}

// WithDefaults sets the values used for omitted request fields.
func WithDefaults(d Defaults) BacktestOption {
	return func(h *BacktestHandler) { h.defaults = d }
}

// WithTimeout bounds each backtest.
func WithTimeout(d time.Duration) BacktestOption {
	return func(h *BacktestHandler) { h.timeout = d }
}

// WithJobsRecorder reports the number of running jobs.
func WithJobsRecorder(r JobsRecorder) BacktestOption {
	return func(h *BacktestHandler) { h.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) BacktestOption {
	return func(h *BacktestHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(runner Runner, jobs *job.Store, opts ...BacktestOption) *BacktestHandler {
	h := &BacktestHandler{
		runner:   runner,
		jobs:     jobs,
		defaults: Defaults{Strategy: "sma_crossover"},
		timeout:  5 * time.Minute,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a backtest synchronously and returns its report.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.execute(ctx, req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, resp)
}

// Submit starts a backtest job.
func (h *BacktestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j, err := h.jobs.Create(jobType)
	if err != nil {
		response.Fail(w, err)
		return
	}
	h.reportActive()

	go h.runJob(j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// JobStatus returns the status of a backtest job.
func (h *BacktestHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"progress":   j.Progress,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// runJob executes the backtest and updates job status.
func (h *BacktestHandler) runJob(jobID string, req backtest.Request) {
	defer h.reportActive()

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	resp, err := h.execute(ctx, req)
	if err != nil {
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(&core.Error{Code: "INTERNAL_ERROR", Message: "backtest failed"}, err)
		}
		h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = resp
	})
}

func (h *BacktestHandler) execute(ctx context.Context, req backtest.Request) (report.Response, error) {
	result, err := h.runner.Run(ctx, req)
	if err != nil {
		return report.Response{}, err
	}

	resp := report.FromResult(uuid.NewString(), h.now(), result)
	if h.runs != nil {
		if err := h.runs.Save(ctx, resp); err != nil {
			h.logger.Warn("failed to store backtest run",
				zap.String("id", resp.ID),
				zap.Error(err),
			)
		}
	}
	return resp, nil
}

// decode parses and validates the request body.
func (h *BacktestHandler) decode(r *http.Request) (backtest.Request, error) {
	var body BacktestRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return backtest.Request{}, core.Errorf(core.ErrInvalidParameter, "decoding request body: %w", err)
	}
	return body.toRequest(h.defaults)
}

func (b BacktestRequest) toRequest(d Defaults) (backtest.Request, error) {
	req := backtest.Request{
		Symbol:      strings.TrimSpace(b.Symbol),
		Strategy:    strings.TrimSpace(b.Strategy),
		Params:      b.Params,
		Interval:    b.Interval,
		CostBps:     valueOr(b.CostBps, d.CostBps),
		SlippageBps: valueOr(b.SlippageBps, d.SlippageBps),
		RFRatePct:   valueOr(b.RFRatePct, d.RFRatePct),
		Refresh:     b.Refresh,
	}
	if req.Symbol == "" {
		return req, core.Errorf(core.ErrInvalidParameter, "symbol is required")
	}
	if req.Strategy == "" {
		req.Strategy = d.Strategy
	}

	var err error
	if req.Start, err = parseDate("start", b.Start); err != nil {
		return req, err
	}
	if req.End, err = parseDate("end", b.End); err != nil {
		return req, err
	}
	if req.Start != nil && req.End != nil && !req.End.After(*req.Start) {
		return req, core.Errorf(core.ErrInvalidParameter, "end %s must be after start %s", b.End, b.Start)
	}
	return req, nil
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, core.Errorf(core.ErrInvalidParameter, "%s must be YYYY-MM-DD: %q", field, s)
	}
	return &t, nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (h *BacktestHandler) reportActive() {
	if h.recorder != nil {
		h.recorder.SetJobsActive(jobType, h.jobs.Active(jobType))
	}
}
