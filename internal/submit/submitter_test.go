package submit

import (
	"context"
	"errors"
	"testing"

	"tradecore/internal/config"
	"tradecore/internal/gateway/exchange"
	"tradecore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Filters(ctx context.Context) (map[string]types.ExchangeFilters, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]types.ExchangeFilters), args.Error(1)
}

func (m *mockGateway) MarkPrices(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *mockGateway) EquityUSD(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockGateway) SubmitBatch(ctx context.Context, intents []types.OrderIntent) (exchange.SubmitResult, error) {
	args := m.Called(ctx, intents)
	return args.Get(0).(exchange.SubmitResult), args.Error(1)
}

func (m *mockGateway) Console(ctx context.Context) (types.ConsoleSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.ConsoleSnapshot), args.Error(1)
}

func (m *mockGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return m.Called(ctx, symbol, orderID).Error(0)
}

func (m *mockGateway) Flatten(ctx context.Context, symbol, side string) error {
	return m.Called(ctx, symbol, side).Error(0)
}

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		RiskPctOK:        0.005,
		RiskPctCaution:   0.0025,
		MaxLeverage:      20,
		ExpiryMinMinutes: 15,
		ExpiryMaxMinutes: 240,
		MinTickMultiple:  5,
		StaticEquityUSD:  10000,
	}
}

func ethPick() types.FinalPick {
	return types.FinalPick{
		Symbol:        "ETHUSDT",
		Side:          types.SideLong,
		Entry:         100,
		StopLoss:      98,
		TakeProfit1:   103,
		TakeProfit2:   106,
		ExpiryMinutes: 60,
		RiskPct:       0.005,
		LeverageHint:  10,
	}
}

func ethFilters() map[string]types.ExchangeFilters {
	return map[string]types.ExchangeFilters{
		"ETHUSDT": {Symbol: "ETHUSDT", TickSize: 0.01, StepSize: 0.001, MinQty: 0.001, MinNotional: 5},
	}
}

func echoed(orderID int64, price, stop float64) *exchange.EchoedOrder {
	return &exchange.EchoedOrder{OrderID: orderID, Status: "NEW", Price: price, StopPrice: stop}
}

func TestSubmitHappyPath(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{"ETHUSDT": 100.5}, nil)
	gw.On("SubmitBatch", mock.Anything, mock.Anything).Return(exchange.SubmitResult{
		Success: true,
		Orders: []exchange.OrderOutcome{{
			Symbol:     "ETHUSDT",
			Status:     "submitted",
			EntryOrder: echoed(1, 100, 0),
			SLOrder:    echoed(2, 0, 98),
			TPOrder:    echoed(3, 0, 103),
		}},
	}, nil)

	s := NewSubmitter(gw, testPolicy())
	report, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true, TPLevel: 1}},
	})
	require.NoError(t, err)
	require.Len(t, report.Intents, 1)
	// riskUsd = 10000*0.005 = 50, R = 2, qty = 25
	assert.InDelta(t, 25.0, report.Intents[0].Qty, 1e-9)
	assert.Empty(t, report.EchoIssues)
	gw.AssertExpectations(t)
}

func TestSubmitAbortsWhenPlanInvalid(t *testing.T) {
	gw := new(mockGateway)
	// 无过滤器 ⇒ 计划无效，必须在下单前中止
	gw.On("Filters", mock.Anything).Return(map[string]types.ExchangeFilters{}, nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{}, nil)

	s := NewSubmitter(gw, testPolicy())
	_, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "批次作废")
	gw.AssertNotCalled(t, "SubmitBatch", mock.Anything, mock.Anything)
}

func TestSubmitRejectsNonTradeablePosture(t *testing.T) {
	s := NewSubmitter(new(mockGateway), testPolicy())
	_, err := s.Submit(context.Background(), Request{Posture: types.PostureNoTrade})
	require.Error(t, err)
}

func TestSubmitRejectsControlWithoutPick(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{}, nil)

	s := NewSubmitter(gw, testPolicy())
	_, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "DOGEUSDT", Include: true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "没有对应 pick")
	gw.AssertNotCalled(t, "SubmitBatch", mock.Anything, mock.Anything)
}

func TestSubmitFallsBackToStaticEquity(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(0.0, errors.New("missing credentials"))
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{}, nil)
	gw.On("SubmitBatch", mock.Anything, mock.Anything).Return(exchange.SubmitResult{Success: true}, nil)

	s := NewSubmitter(gw, testPolicy())
	report, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true}},
	})
	require.NoError(t, err)
	require.Len(t, report.Intents, 1)
	assert.InDelta(t, 25.0, report.Intents[0].Qty, 1e-9, "static_equity_usd=10000 推导同样数量")
}

func TestSubmitAmountOverride(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{}, nil)
	gw.On("SubmitBatch", mock.Anything, mock.Anything).Return(exchange.SubmitResult{Success: true}, nil)

	s := NewSubmitter(gw, testPolicy())
	report, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true, AmountUSD: 500}},
	})
	require.NoError(t, err)
	require.Len(t, report.Intents, 1)
	assert.InDelta(t, 5.0, report.Intents[0].Qty, 1e-9, "500/100 = 5")
	assert.InDelta(t, 500.0, report.Intents[0].Notional, 1e-9)
}

func TestSubmitEmitsMarkWarningsWithoutBlocking(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	// 标记价已越过止盈
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{"ETHUSDT": 104}, nil)
	gw.On("SubmitBatch", mock.Anything, mock.Anything).Return(exchange.SubmitResult{Success: true}, nil)

	s := NewSubmitter(gw, testPolicy())
	report, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true}},
	})
	require.NoError(t, err, "提示性告警不阻断提交")
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "止盈")
	gw.AssertCalled(t, "SubmitBatch", mock.Anything, mock.Anything)
}

func TestSubmitReportsEchoMismatch(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{}, nil)
	gw.On("SubmitBatch", mock.Anything, mock.Anything).Return(exchange.SubmitResult{
		Success: true,
		Orders: []exchange.OrderOutcome{{
			Symbol:     "ETHUSDT",
			Status:     "submitted",
			EntryOrder: echoed(1, 100.5, 0), // 与意图 entry=100 分叉
			SLOrder:    echoed(2, 0, 98),
		}},
	}, nil)

	s := NewSubmitter(gw, testPolicy())
	report, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true}},
	})
	require.NoError(t, err, "回显不一致记录在案但不触发自动重试")
	require.Len(t, report.EchoIssues, 1)
	assert.Contains(t, report.EchoIssues[0], "entry")
}

func TestSubmitTPWithheldIsNotAnEchoIssue(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Filters", mock.Anything).Return(ethFilters(), nil)
	gw.On("EquityUSD", mock.Anything).Return(10000.0, nil)
	gw.On("MarkPrices", mock.Anything).Return(map[string]float64{}, nil)
	gw.On("SubmitBatch", mock.Anything, mock.Anything).Return(exchange.SubmitResult{
		Success: true,
		Orders: []exchange.OrderOutcome{{
			Symbol:     "ETHUSDT",
			Status:     "submitted",
			EntryOrder: echoed(1, 100, 0),
			SLOrder:    echoed(2, 0, 98),
			TPOrder:    nil, // 止盈被标记价闸门暂缓
		}},
	}, nil)

	s := NewSubmitter(gw, testPolicy())
	report, err := s.Submit(context.Background(), Request{
		Posture:  types.PostureOK,
		Picks:    []types.FinalPick{ethPick()},
		Controls: []types.CoinControl{{Symbol: "ETHUSDT", Include: true}},
	})
	require.NoError(t, err)
	assert.Empty(t, report.EchoIssues)
}
