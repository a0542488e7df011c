package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/gateway/exchange"
	"tradecore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway 只实现 Poller 用到的几条路径，带可编程的响应队列。
type fakeGateway struct {
	mu           sync.Mutex
	consoleResps []consoleResp
	consoleCalls int
	cancelErrs   map[int64]error
	cancelled    []int64
	flattenErrs  map[string]error
	flattened    []string
}

type consoleResp struct {
	snap types.ConsoleSnapshot
	err  error
}

func (f *fakeGateway) Console(ctx context.Context) (types.ConsoleSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consoleCalls++
	if len(f.consoleResps) == 0 {
		return types.ConsoleSnapshot{Marks: map[string]float64{}}, nil
	}
	resp := f.consoleResps[0]
	if len(f.consoleResps) > 1 {
		f.consoleResps = f.consoleResps[1:]
	}
	return resp.snap, resp.err
}

func (f *fakeGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErrs[orderID]
}

func (f *fakeGateway) Flatten(ctx context.Context, symbol, side string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flattened = append(f.flattened, symbol)
	return f.flattenErrs[symbol]
}

func (f *fakeGateway) Filters(ctx context.Context) (map[string]types.ExchangeFilters, error) {
	return nil, nil
}
func (f *fakeGateway) MarkPrices(ctx context.Context) (map[string]float64, error) { return nil, nil }
func (f *fakeGateway) EquityUSD(ctx context.Context) (float64, error)             { return 0, nil }
func (f *fakeGateway) SubmitBatch(ctx context.Context, intents []types.OrderIntent) (exchange.SubmitResult, error) {
	return exchange.SubmitResult{}, nil
}

func newTestPoller(gw exchange.Gateway) (*Poller, *Hub) {
	hub := NewHub()
	p := NewPoller(gw, hub, config.ReconcileConfig{IntervalSeconds: 5, BreakerThreshold: 3, BreakerCooldownSeconds: 60})
	return p, hub
}

func TestPollReplacesSnapshotWholesale(t *testing.T) {
	gw := &fakeGateway{consoleResps: []consoleResp{
		{snap: types.ConsoleSnapshot{
			OpenOrders: []types.OpenOrder{{Symbol: "ETHUSDT", OrderID: 1}},
			Positions:  []types.Position{{Symbol: "BTCUSDT", Amount: 0.1}},
			Marks:      map[string]float64{"ETHUSDT": 100},
		}},
		{snap: types.ConsoleSnapshot{Marks: map[string]float64{}}},
	}}
	p, hub := newTestPoller(gw)

	p.PollNow(context.Background())
	assert.Len(t, hub.Current().OpenOrders, 1)

	p.PollNow(context.Background())
	cur := hub.Current()
	assert.Empty(t, cur.OpenOrders, "空快照必须整体替换旧状态，不能残留")
	assert.Empty(t, cur.Positions)
}

func TestPollKeepsPreviousSnapshotOnFailure(t *testing.T) {
	gw := &fakeGateway{consoleResps: []consoleResp{
		{snap: types.ConsoleSnapshot{
			Positions: []types.Position{{Symbol: "ETHUSDT", Amount: 1}},
			Marks:     map[string]float64{},
		}},
		{err: errors.New("transient 500")},
	}}
	p, hub := newTestPoller(gw)

	p.PollNow(context.Background())
	p.PollNow(context.Background())
	assert.Len(t, hub.Current().Positions, 1, "失败轮保留上一次成功的快照")
}

func TestBanSuspendsPollingUntilExactExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(60 * time.Second)
	gw := &fakeGateway{consoleResps: []consoleResp{
		{err: &exchange.BanError{Until: until, Err: errors.New("banned")}},
		{snap: types.ConsoleSnapshot{Marks: map[string]float64{}}},
	}}
	p, hub := newTestPoller(gw)
	p.nowFn = func() time.Time { return now }

	p.PollNow(context.Background())
	banned, remaining := p.BanStatus()
	require.True(t, banned)
	assert.Equal(t, 60*time.Second, remaining)
	assert.Equal(t, until, hub.Current().Usage.BannedUntil)

	// 封禁期内：完全不发请求
	now = now.Add(30 * time.Second)
	p.PollNow(context.Background())
	assert.Equal(t, 1, gw.consoleCalls, "封禁期内不得发起任何拉取")
	banned, remaining = p.BanStatus()
	require.True(t, banned)
	assert.Equal(t, 30*time.Second, remaining, "剩余时间应随时钟推进递减")

	// 到点恢复
	now = until
	p.PollNow(context.Background())
	assert.Equal(t, 2, gw.consoleCalls, "解禁时刻应精确恢复")
	banned, _ = p.BanStatus()
	assert.False(t, banned)
	assert.True(t, hub.Current().Usage.BannedUntil.IsZero(), "恢复成功后封禁标记清除")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	gw := &fakeGateway{consoleResps: []consoleResp{
		{err: errors.New("boom")},
	}}
	p, _ := newTestPoller(gw)

	for i := 0; i < 5; i++ {
		p.PollNow(context.Background())
	}
	// threshold=3：三次失败后熔断器打开，后续轮次不再请求
	assert.Equal(t, 3, gw.consoleCalls)
}

func TestCancelAllSettlesEveryOutcome(t *testing.T) {
	gw := &fakeGateway{
		consoleResps: []consoleResp{{snap: types.ConsoleSnapshot{Marks: map[string]float64{}}}},
		cancelErrs:   map[int64]error{2: errors.New("rejected")},
	}
	p, hub := newTestPoller(gw)
	hub.Replace(types.ConsoleSnapshot{
		OpenOrders: []types.OpenOrder{{Symbol: "ETHUSDT", OrderID: 1}, {Symbol: "BTCUSDT", OrderID: 2}},
		Waiting:    []types.WaitingOrder{{Symbol: "ETHUSDT", OrderID: 3}},
		Marks:      map[string]float64{},
	})

	outcomes := p.CancelAll(context.Background())
	require.Len(t, outcomes, 3, "每个订单都必须有结果，失败不短路")
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
			assert.EqualValues(t, 2, o.OrderID)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, gw.cancelled, 3)
	assert.GreaterOrEqual(t, gw.consoleCalls, 1, "撤单后应立即做一次对账")
}

func TestFlattenAllSettlesEveryOutcome(t *testing.T) {
	gw := &fakeGateway{
		consoleResps: []consoleResp{{snap: types.ConsoleSnapshot{Marks: map[string]float64{}}}},
		flattenErrs:  map[string]error{"BTCUSDT": errors.New("reduce-only reject")},
	}
	p, hub := newTestPoller(gw)
	hub.Replace(types.ConsoleSnapshot{
		Positions: []types.Position{
			{Symbol: "ETHUSDT", Side: "LONG", Amount: 1},
			{Symbol: "BTCUSDT", Side: "SHORT", Amount: -0.5},
		},
		Marks: map[string]float64{},
	})

	outcomes := p.FlattenAll(context.Background())
	require.Len(t, outcomes, 2)
	assert.Len(t, gw.flattened, 2)
}
