package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/gateway/exchange"
	"tradecore/internal/logger"
	"tradecore/internal/pkg/circuit"
	"tradecore/internal/types"
)

// Poller 周期性拉取交易所合并快照。限频封禁期间完全静默，
// 到点精确恢复；非限频类连续失败交给熔断器隔离。
type Poller struct {
	gateway  exchange.Gateway
	hub      *Hub
	interval time.Duration
	breaker  *circuit.Breaker

	mu          sync.Mutex
	bannedUntil time.Time

	nowFn func() time.Time
}

func NewPoller(gw exchange.Gateway, hub *Hub, cfg config.ReconcileConfig) *Poller {
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := time.Duration(cfg.BreakerCooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	return &Poller{
		gateway:  gw,
		hub:      hub,
		interval: cfg.Interval(),
		breaker:  circuit.NewBreaker("reconcile", threshold, cooldown),
		nowFn:    time.Now,
	}
}

// Run 启动轮询循环，直到 ctx 结束。
func (p *Poller) Run(ctx context.Context) error {
	logger.Infof("reconcile: 对账轮询启动，间隔 %s", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollNow(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("reconcile: 对账轮询退出")
			return ctx.Err()
		case <-ticker.C:
			p.PollNow(ctx)
		}
	}
}

// PollNow 立即执行一轮对账（撤单/平仓后用它做即时核对）。
func (p *Poller) PollNow(ctx context.Context) {
	now := p.nowFn()

	p.mu.Lock()
	banned := now.Before(p.bannedUntil)
	until := p.bannedUntil
	p.mu.Unlock()
	if banned {
		remaining := until.Sub(now).Round(time.Second)
		logger.Warnf("reconcile: 限频封禁中，%s 后恢复 (until=%s)", remaining, until.UTC().Format(time.RFC3339))
		p.hub.SetBannedUntil(until)
		return
	}

	if !p.breaker.Allow() {
		logger.Debugf("reconcile: 熔断器打开，跳过本轮拉取")
		return
	}

	snap, err := p.gateway.Console(ctx)
	if err != nil {
		var ban *exchange.BanError
		if errors.As(err, &ban) {
			p.mu.Lock()
			p.bannedUntil = ban.Until
			p.mu.Unlock()
			p.hub.SetBannedUntil(ban.Until)
			logger.Errorf("reconcile: 触发限频封禁，暂停到 %s", ban.Until.UTC().Format(time.RFC3339))
			return
		}
		p.breaker.RecordFailure()
		// 保留上一次成功的快照，不用失败污染本地视图
		logger.Errorf("reconcile: 拉取失败，保留旧快照: %v", err)
		return
	}
	p.breaker.RecordSuccess()

	p.mu.Lock()
	p.bannedUntil = time.Time{}
	p.mu.Unlock()
	p.hub.Replace(snap)
	logger.Debugf("reconcile: 快照已更新 orders=%d positions=%d waiting=%d weight=%d/%d",
		len(snap.OpenOrders), len(snap.Positions), len(snap.Waiting),
		snap.Usage.UsedWeight, snap.Usage.Limit)
}

// OpOutcome 是批量撤单/平仓里单个操作的结果。
type OpOutcome struct {
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CancelAll 撤销快照里的全部挂单（含未触发条件单）。每个操作独立
// 执行、全部收尾后统一上报，单个失败不中断其余撤销。
func (p *Poller) CancelAll(ctx context.Context) []OpOutcome {
	snap := p.hub.Current()
	type target struct {
		symbol  string
		orderID int64
	}
	var targets []target
	for _, o := range snap.OpenOrders {
		targets = append(targets, target{o.Symbol, o.OrderID})
	}
	for _, w := range snap.Waiting {
		targets = append(targets, target{w.Symbol, w.OrderID})
	}

	outcomes := make([]OpOutcome, len(targets))
	var wg sync.WaitGroup
	for i, tg := range targets {
		wg.Add(1)
		go func(i int, tg target) {
			defer wg.Done()
			out := OpOutcome{Symbol: tg.symbol, OrderID: tg.orderID}
			if err := p.gateway.CancelOrder(ctx, tg.symbol, tg.orderID); err != nil {
				out.Error = err.Error()
			}
			outcomes[i] = out
		}(i, tg)
	}
	wg.Wait()

	logger.Infof("reconcile: 批量撤单完成 total=%d failed=%d", len(outcomes), countFailed(outcomes))
	p.PollNow(ctx)
	return outcomes
}

// FlattenAll 市价平掉快照里的全部持仓，同样按 all-settled 语义收集结果。
func (p *Poller) FlattenAll(ctx context.Context) []OpOutcome {
	snap := p.hub.Current()
	outcomes := make([]OpOutcome, len(snap.Positions))
	var wg sync.WaitGroup
	for i, pos := range snap.Positions {
		wg.Add(1)
		go func(i int, pos types.Position) {
			defer wg.Done()
			out := OpOutcome{Symbol: pos.Symbol}
			if err := p.gateway.Flatten(ctx, pos.Symbol, pos.Side); err != nil {
				out.Error = err.Error()
			}
			outcomes[i] = out
		}(i, pos)
	}
	wg.Wait()

	logger.Infof("reconcile: 批量平仓完成 total=%d failed=%d", len(outcomes), countFailed(outcomes))
	p.PollNow(ctx)
	return outcomes
}

// CancelOne 撤销单笔订单并立即做一次对账。
func (p *Poller) CancelOne(ctx context.Context, symbol string, orderID int64) error {
	if err := p.gateway.CancelOrder(ctx, symbol, orderID); err != nil {
		return err
	}
	p.PollNow(ctx)
	return nil
}

// FlattenOne 市价平掉单个 symbol 的持仓并立即做一次对账。
func (p *Poller) FlattenOne(ctx context.Context, symbol, side string) error {
	if err := p.gateway.Flatten(ctx, symbol, side); err != nil {
		return err
	}
	p.PollNow(ctx)
	return nil
}

// BanStatus 返回当前是否处于封禁窗口及剩余时长。
func (p *Poller) BanStatus() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.nowFn()
	if now.Before(p.bannedUntil) {
		return true, p.bannedUntil.Sub(now)
	}
	return false, 0
}

func countFailed(outcomes []OpOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}
