package api

import (
	"net/http"
	"strconv"

	"github.com/newthinker/algotrade/internal/api/response"
	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/storage/run"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

// RunsHandler serves stored backtest runs.
type RunsHandler struct {
	store run.Store
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store run.Store) *RunsHandler {
	return &RunsHandler{store: store}
}

// List returns runs matching query parameters, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := run.ListFilter{
		Symbol:   q.Get("symbol"),
		Strategy: q.Get("strategy"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), defaultRunsLimit); err != nil {
		response.Fail(w, err)
		return
	}
	switch {
	case filter.Limit == 0:
		filter.Limit = defaultRunsLimit
	case filter.Limit > maxRunsLimit:
		filter.Limit = maxRunsLimit
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		response.Fail(w, err)
		return
	}

	runs, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.Page(w, runs, total)
}

// Get returns one run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, core.Errorf(core.ErrInvalidParameter, "expected a non-negative integer, got %q", s)
	}
	return n, nil
}
