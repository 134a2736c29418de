package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/algotrade/internal/strategy"
	"github.com/newthinker/algotrade/internal/strategy/builtin"
)

func TestStrategiesHandler_List(t *testing.T) {
	handler := NewStrategiesHandler(builtin.NewEngine(nil))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/v1/strategies", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data []strategy.Info `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	names := map[string]strategy.Info{}
	for _, info := range resp.Data {
		names[info.Name] = info
	}
	if _, ok := names["sma_crossover"]; !ok {
		t.Error("expected sma_crossover")
	}
	rsi, ok := names["rsi"]
	if !ok {
		t.Fatal("expected rsi")
	}
	if rsi.Defaults["period"] != 14 {
		t.Errorf("expected rsi period default 14, got %v", rsi.Defaults["period"])
	}
}
