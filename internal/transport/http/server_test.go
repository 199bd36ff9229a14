package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurum/internal/backtest"
	"aurum/internal/config"
	"aurum/internal/market"
	"aurum/internal/market/indicator"
	"aurum/internal/report"
	"aurum/internal/store/cyclelog"
	"aurum/internal/store/gormstore"
	"aurum/internal/strategy"
)

type stubSource struct{}

func (stubSource) Quote(context.Context, string) (market.Quote, error) {
	return market.Quote{Price: decimal.NewFromInt(10)}, nil
}

func (stubSource) DailyCandles(_ context.Context, _ string, limit int) ([]market.Candle, error) {
	candles := make([]market.Candle, limit)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = market.Candle{Date: day.AddDate(0, 0, i), Open: 10, High: 10.2, Low: 9.8, Close: 10.1, Volume: 1000}
	}
	return candles, nil
}

// fallingSource serves a steadily declining tape so the replay engine has
// oversold bars to act on.
type fallingSource struct{ stubSource }

func (fallingSource) DailyCandles(_ context.Context, _ string, limit int) ([]market.Candle, error) {
	candles := make([]market.Candle, limit)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		close := 80.0 - 0.2*float64(i)
		candles[i] = market.Candle{Date: day.AddDate(0, 0, i), Open: close + 0.1, High: close + 0.3, Low: close - 0.3, Close: close, Volume: 1000}
	}
	return candles, nil
}

func newBacktestService(source market.Source) *backtest.Service {
	cfg := config.StrategyConfig{
		BaseInvestment: 3000,
		MinBuyAmount:   1000,
		LotSize:        100,
		OncePerDay:     true,
		EntrySignals:   []string{"rsi_oversold"},
		Exit: config.ExitConfig{
			StopLossRate:       0.10,
			ProfitCallbackRate: 0.01,
			MaxProfitRate:      0.50,
			MaxHoldDays:        30,
		},
	}
	return &backtest.Service{
		Source:    source,
		Indicator: indicator.DefaultConfig(),
		Defaults:  cfg,
		NewEngine: func(cfg config.StrategyConfig) *strategy.Engine {
			agg := strategy.NewAggregator(strategy.AggregatorConfig{
				BullishSignals: cfg.EntrySignals,
				Exit: strategy.ExitRules{
					StopLossRate:       decimal.NewFromFloat(cfg.Exit.StopLossRate),
					ProfitCallbackRate: decimal.NewFromFloat(cfg.Exit.ProfitCallbackRate),
					MaxProfitRate:      decimal.NewFromFloat(cfg.Exit.MaxProfitRate),
					MaxHoldDays:        cfg.Exit.MaxHoldDays,
					BearishSignals:     cfg.Exit.BearishSignals,
				},
			})
			return strategy.NewEngine(strategy.EngineConfig{
				Aggregator: agg,
				Sizer: strategy.ProportionalSizer{
					BaseInvestment: decimal.NewFromFloat(cfg.BaseInvestment),
					MinBuyAmount:   decimal.NewFromFloat(cfg.MinBuyAmount),
					LotSize:        cfg.LotSize,
				},
				CostRate:   decimal.NewFromFloat(cfg.CostRate),
				OncePerDay: cfg.OncePerDay,
			})
		},
	}
}

func newTestServer(t *testing.T) (*Server, *Router) {
	t.Helper()
	accounts, err := gormstore.New(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accounts.Close() })

	cycles, err := cyclelog.New(filepath.Join(t.TempDir(), "cycles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cycles.Close() })

	reg := config.RegisterConfig{WindowStart: "09:30", WindowEnd: "15:00", ExpireDays: 365}
	router := NewRouter(accounts, cycles, stubSource{}, reg, 60)
	router.Backtest = newBacktestService(fallingSource{})
	router.renderChart = func(report.ChartInput) (report.ImageResult, error) {
		return report.ImageResult{Bytes: []byte{0x89, 0x50, 0x4e, 0x47}}, nil
	}
	srv, err := NewServer(":0", router)
	require.NoError(t, err)
	return srv, router
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndGetAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/accounts/register",
		`{"auth":"tok-a","total_cost":"20000","total_shares":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reg AccountView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.Equal(t, "tok-a", reg.Auth)
	assert.Equal(t, "20000", reg.TotalCost)
	assert.Equal(t, "09:30", reg.WindowStart)
	assert.True(t, reg.Enabled)
	assert.Nil(t, reg.Position)

	w = doJSON(t, srv, http.MethodGet, "/api/accounts/tok-a", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/accounts/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterRejectsBadWindow(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/api/accounts/register",
		`{"auth":"tok-a","window_start":"16:00","window_end":"09:00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/api/accounts/register", `{"total_cost":"100"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteThenListExcludes(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, "/api/accounts/register", `{"auth":"tok-a"}`).Code)
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, "/api/accounts/register", `{"auth":"tok-b"}`).Code)

	w := doJSON(t, srv, http.MethodDelete, "/api/accounts/tok-a", "")
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Total int           `json:"total"`
		Items []AccountView `json:"items"`
	}
	w = doJSON(t, srv, http.MethodGet, "/api/accounts", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "tok-b", out.Items[0].Auth)

	w = doJSON(t, srv, http.MethodGet, "/api/accounts?include_deleted=true", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Total)
}

func TestTradesEmptyForFreshAccount(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, "/api/accounts/register", `{"auth":"tok-a"}`).Code)

	w := doJSON(t, srv, http.MethodGet, "/api/accounts/tok-a/trades", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Zero(t, out.Total)
}

func TestCyclesEndpointFilters(t *testing.T) {
	srv, router := newTestServer(t)
	ctx := context.Background()
	for _, d := range []string{"enter", "none"} {
		_, err := router.Cycles.Insert(ctx, cyclelog.Record{Auth: "tok-a", StockCode: "600547", Decision: d})
		require.NoError(t, err)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/cycles?auth=tok-a&decision=enter", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Total int               `json:"total"`
		Items []cyclelog.Record `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "enter", out.Items[0].Decision)
}

func TestChartEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/api/chart/600547", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, w.Body.Bytes())
}

func TestBacktestEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/backtest", `{"stock_code":"600547","months":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out backtest.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "600547", out.StockCode)
	assert.NotEmpty(t, out.Curve)
	// A falling tape is oversold throughout, so the engine must have traded.
	assert.NotEmpty(t, out.Trades)
	assert.Equal(t, "buy", out.Trades[0].Side)
	assert.NotEmpty(t, out.Period.Start)
}

func TestBacktestEndpointRequiresStockCode(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/api/backtest", `{"months":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
