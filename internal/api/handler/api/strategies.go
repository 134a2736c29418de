package api

import (
	"net/http"

	"github.com/newthinker/algotrade/internal/api/response"
	"github.com/newthinker/algotrade/internal/strategy"
)

// StrategiesHandler lists the registered strategies.
type StrategiesHandler struct {
	engine *strategy.Engine
}

// NewStrategiesHandler creates a new strategies handler.
func NewStrategiesHandler(engine *strategy.Engine) *StrategiesHandler {
	return &StrategiesHandler{engine: engine}
}

// List returns each strategy with its default parameters.
func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.engine.Describe())
}
