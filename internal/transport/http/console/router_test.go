package consolehttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tradecore/internal/config"
	"tradecore/internal/controls"
	"tradecore/internal/gateway/decision"
	"tradecore/internal/gateway/exchange"
	"tradecore/internal/pipeline"
	"tradecore/internal/reconcile"
	"tradecore/internal/submit"
	"tradecore/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubDecider struct{}

func (stubDecider) Snapshot(ctx context.Context) (decision.MarketSnapshot, error) {
	return decision.MarketSnapshot{Universe: []types.Candidate{{Symbol: "ETHUSDT"}}}, nil
}

func (stubDecider) Decide(ctx context.Context, view decision.CompactView) (decision.MarketDecision, error) {
	return decision.MarketDecision{Posture: types.PostureNoTrade, Reasons: []string{"quiet"}}, nil
}

func (stubDecider) FinalPicker(ctx context.Context, input decision.PickerInput) (decision.PickerResult, error) {
	return decision.PickerResult{OK: true}, nil
}

type stubGateway struct {
	snap types.ConsoleSnapshot
}

func (g *stubGateway) Filters(ctx context.Context) (map[string]types.ExchangeFilters, error) {
	return map[string]types.ExchangeFilters{}, nil
}
func (g *stubGateway) MarkPrices(ctx context.Context) (map[string]float64, error) { return nil, nil }
func (g *stubGateway) EquityUSD(ctx context.Context) (float64, error)             { return 10000, nil }
func (g *stubGateway) SubmitBatch(ctx context.Context, intents []types.OrderIntent) (exchange.SubmitResult, error) {
	return exchange.SubmitResult{Success: true}, nil
}
func (g *stubGateway) Console(ctx context.Context) (types.ConsoleSnapshot, error) {
	return g.snap, nil
}
func (g *stubGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return nil
}
func (g *stubGateway) Flatten(ctx context.Context, symbol, side string) error { return nil }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gw := &stubGateway{snap: types.ConsoleSnapshot{
		Positions: []types.Position{{Symbol: "BTCUSDT", Amount: 0.1}},
		Marks:     map[string]float64{},
	}}
	hub := reconcile.NewHub()
	policy := config.PolicyConfig{RiskPctOK: 0.005, MaxLeverage: 20, ExpiryMinMinutes: 15, ExpiryMaxMinutes: 240}
	api := &Router{
		Orchestrator: pipeline.NewOrchestrator(stubDecider{}, hub, policy),
		Submitter:    submit.NewSubmitter(gw, policy),
		Poller:       reconcile.NewPoller(gw, hub, config.ReconcileConfig{}),
		Hub:          hub,
		Controls:     controls.NewStore(config.ControlsConfig{}),
	}
	engine := gin.New()
	api.Register(engine.Group("/api"))
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRunEndpointReturnsResult(t *testing.T) {
	engine := newTestEngine(t)
	w := doRequest(engine, http.MethodPost, "/api/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(pipeline.StateSuccessNoPicks), gjson.Get(w.Body.String(), "run.state").String())
}

func TestControlsRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	w := doRequest(engine, http.MethodPut, "/api/controls/ethusdt",
		`{"include":true,"tp_level":2,"amount_usd":300}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ETHUSDT", gjson.Get(w.Body.String(), "control.symbol").String())

	w = doRequest(engine, http.MethodGet, "/api/controls", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, gjson.Get(w.Body.String(), "controls.#").Int())
}

func TestSubmitWithoutSelectionIsRejected(t *testing.T) {
	engine := newTestEngine(t)
	w := doRequest(engine, http.MethodPost, "/api/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestConsoleEndpointReflectsSnapshot(t *testing.T) {
	engine := newTestEngine(t)
	// 先触发一次对账，让 hub 拿到快照
	doRequest(engine, http.MethodPost, "/api/orders/cancel-all", "")

	w := doRequest(engine, http.MethodGet, "/api/console", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, gjson.Get(w.Body.String(), "console.positions.#").Int())
	assert.False(t, gjson.Get(w.Body.String(), "banned").Bool())
}

func TestCancelOrderValidatesParams(t *testing.T) {
	engine := newTestEngine(t)
	w := doRequest(engine, http.MethodDelete, "/api/orders/ETHUSDT/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunsEndpointWithoutJournal(t *testing.T) {
	engine := newTestEngine(t)
	w := doRequest(engine, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
