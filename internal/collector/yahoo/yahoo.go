package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/algotrade/internal/collector"
	"github.com/newthinker/algotrade/internal/core"
)

const (
	baseURL        = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (compatible; algotrade/1.0)"
)

// validSymbol matches tickers like AAPL, BRK-B, 0700.HK, ^GSPC, EURUSD=X
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9][A-Za-z0-9\-]{0,14}(\.[A-Za-z]{1,4})?(=[A-Za-z])?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return core.Errorf(core.ErrInvalidParameter, "symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return core.Errorf(core.ErrInvalidParameter, "symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return core.Errorf(core.ErrInvalidParameter, "invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements the Yahoo Finance chart collector
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// New creates a new Yahoo collector
func New() *Yahoo {
	return &Yahoo{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

func (y *Yahoo) Init(cfg collector.Config) error {
	if cfg.BaseURL != "" {
		y.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		y.client.Timeout = cfg.Timeout
	}
	return nil
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

func toYahooInterval(interval string) (string, error) {
	switch interval {
	case "", "1d":
		return "1d", nil
	case "1wk", "1mo":
		return interval, nil
	default:
		return "", core.Errorf(core.ErrInvalidParameter, "unsupported interval %q", interval)
	}
}

// FetchHistory fetches split- and dividend-adjusted OHLCV bars in
// [q.Start, q.End).
func (y *Yahoo) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	if err := validateSymbol(q.Symbol); err != nil {
		return nil, err
	}
	interval, err := toYahooInterval(q.Interval)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("period1", fmt.Sprint(q.Start.Unix()))
	params.Set("period2", fmt.Sprint(q.End.Unix()))
	params.Set("events", "div,splits")
	endpoint := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(toYahooSymbol(q.Symbol)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, core.WrapError(core.ErrCollectorTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, core.Errorf(core.ErrCollectorFailed, "fetching history: %w", err)
	}
	defer resp.Body.Close()

	var result chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.Errorf(core.ErrSymbolNotFound, "%s", q.Symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.ErrCollectorFailed, "unexpected status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, core.Errorf(core.ErrCollectorFailed, "decoding response: %w", decodeErr)
	}

	if result.Chart.Error != nil {
		if strings.EqualFold(result.Chart.Error.Code, "Not Found") {
			return nil, core.Errorf(core.ErrSymbolNotFound, "%s: %s", q.Symbol, result.Chart.Error.Description)
		}
		return nil, core.Errorf(core.ErrCollectorFailed, "yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no data for symbol: %s", q.Symbol)
	}

	return parseBars(result.Chart.Result[0], q), nil
}

func parseBars(r chartResult, q core.HistoryQuery) []core.OHLCV {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	quotes := r.Indicators.Quote[0]

	var adjusted []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adjusted = r.Indicators.AdjClose[0].AdjClose
	}

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePx := at(quotes.Close, i)
		if closePx <= 0 || math.IsNaN(closePx) {
			continue // Skip bars without a close
		}

		// Daily and coarser bars are keyed by session date.
		t := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		if t.Before(q.Start) || !t.Before(q.End) {
			continue
		}

		factor := 1.0
		if adj := at(adjusted, i); adj > 0 {
			factor = adj / closePx
		}

		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}

		data = append(data, core.OHLCV{
			Symbol:   q.Symbol,
			Interval: q.Interval,
			Open:     at(quotes.Open, i) * factor,
			High:     at(quotes.High, i) * factor,
			Low:      at(quotes.Low, i) * factor,
			Close:    closePx * factor,
			Volume:   volume,
			Time:     t,
		})
	}

	return data
}

// at returns the value at index i, or 0 when absent.
func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol       string `json:"symbol"`
	Currency     string `json:"currency"`
	ExchangeName string `json:"exchangeName"`
}

type indicators struct {
	Quote    []quoteIndicator    `json:"quote"`
	AdjClose []adjCloseIndicator `json:"adjclose"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type adjCloseIndicator struct {
	AdjClose []*float64 `json:"adjclose"`
}
