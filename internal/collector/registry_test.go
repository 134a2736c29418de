package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/algotrade/internal/core"
)

type stubCollector struct {
	name    string
	initErr error
	cfg     Config
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Init(cfg Config) error {
	s.cfg = cfg
	return s.initErr
}

func (s *stubCollector) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	return nil, nil
}

func TestRegistry_GetIsCaseInsensitive(t *testing.T) {
	r := NewRegistry(&stubCollector{name: "yahoo"})

	for _, name := range []string{"yahoo", "Yahoo", " YAHOO "} {
		c, ok := r.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, "yahoo", c.Name())
	}

	_, ok := r.Get("stooq")
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(&stubCollector{name: "yahoo"}, &stubCollector{name: "CSV"})
	assert.Equal(t, []string{"csv", "yahoo"}, r.Names())
}

func TestRegistry_Open(t *testing.T) {
	stub := &stubCollector{name: "yahoo"}
	r := NewRegistry(stub)

	c, err := r.Open("yahoo", Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Same(t, stub, c)
	assert.Equal(t, "http://127.0.0.1:1", stub.cfg.BaseURL)
}

func TestRegistry_OpenErrors(t *testing.T) {
	broken := errors.New("bad endpoint")
	r := NewRegistry(&stubCollector{name: "broken", initErr: broken})

	_, err := r.Open("stooq", Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "available: broken")

	_, err = r.Open("broken", Config{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.ErrorIs(t, err, broken)
}
