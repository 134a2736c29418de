package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/algotrade/internal/backtest"
	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/metrics"
	"github.com/newthinker/algotrade/internal/strategy/builtin"
	"go.uber.org/zap"
)

type linearProvider struct{}

func (linearProvider) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	var bars []core.OHLCV
	for i, t := 0, q.Start; t.Before(q.End); i, t = i+1, t.AddDate(0, 0, 1) {
		price := 100 + float64(i%15)
		bars = append(bars, core.OHLCV{Symbol: q.Symbol, Open: price, High: price, Low: price, Close: price, Time: t})
	}
	return bars, nil
}

func newTestServer(t *testing.T, cfg Config, reg *metrics.Registry) *Server {
	t.Helper()
	engine := builtin.NewEngine(nil)
	srv, err := NewServer(cfg, Dependencies{
		Backtester: backtest.New(linearProvider{}, engine),
		Strategies: engine,
		Metrics:    reg,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost"}, nil)

	for _, path := range []string{"/health", "/api/health"} {
		w := serve(srv, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"ok"`) {
			t.Errorf("%s: unexpected body %s", path, w.Body.String())
		}
	}
}

func TestServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(Config{}, Dependencies{}, nil); err == nil {
		t.Error("expected error without a backtester")
	}
}

func TestServer_APIAuth(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		header string
		path   string
		want   int
	}{
		{"missing key", "test-key", "", "/api/v1/strategies", http.StatusUnauthorized},
		{"wrong key", "test-key", "nope", "/api/v1/strategies", http.StatusUnauthorized},
		{"valid key", "test-key", "test-key", "/api/v1/strategies", http.StatusOK},
		{"auth disabled", "", "", "/api/v1/strategies", http.StatusOK},
		{"health is public", "test-key", "", "/health", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Config{APIKey: tt.apiKey}, nil)

			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			if w := serve(srv, req); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestServer_Backtest(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	for _, path := range []string{"/backtest", "/api/v1/backtest"} {
		body := `{"symbol": "SPY", "strategy": "sma_crossover", "start": "2023-01-01", "end": "2023-06-01",
			"params": {"fast": 3, "slow": 7}}`
		req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
		w := serve(srv, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected permissive CORS header")
		}
	}

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/runs", nil))
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 stored runs, got %d", len(resp.Data))
	}
}

func TestServer_BacktestWrongMethod(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/backtest", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := metrics.NewRegistry()
	srv := newTestServer(t, Config{MetricsPath: "/metrics"}, reg)

	serve(srv, httptest.NewRequest("GET", "/api/v1/strategies", nil))

	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="GET /api/v1/strategies",status="2xx"}`) {
		t.Errorf("expected request counter in exposition:\n%s", w.Body.String())
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
