// Package binance implements the exchange gateway on Binance USDⓈ-M
// futures via the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/gateway/exchange"
	"tradecore/internal/logger"
	"tradecore/internal/pkg/convert"
	"tradecore/internal/types"

	"github.com/adshao/go-binance/v2/futures"
)

type Gateway struct {
	client     *futures.Client
	meter      *weightMeter
	usageLimit int
	hasCreds   bool
}

var _ exchange.Gateway = (*Gateway)(nil)

func New(cfg config.ExchangeConfig) (*Gateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	apiSecret := strings.TrimSpace(cfg.APISecret)
	client := futures.NewClient(apiKey, apiSecret)
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Gateway{
		client:     client,
		meter:      newWeightMeter(),
		usageLimit: cfg.UsageLimit,
		hasCreds:   apiKey != "" && apiSecret != "",
	}, nil
}

// Filters 从 exchangeInfo 提取每个 symbol 的量化约束。
func (g *Gateway) Filters(ctx context.Context) (map[string]types.ExchangeFilters, error) {
	g.meter.add(weightExchangeInfo)
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classifyBan(err)
	}
	out := make(map[string]types.ExchangeFilters, len(info.Symbols))
	for i := range info.Symbols {
		sym := info.Symbols[i]
		if sym.Status != "TRADING" {
			continue
		}
		f := types.ExchangeFilters{Symbol: sym.Symbol}
		if pf := sym.PriceFilter(); pf != nil {
			f.TickSize = convert.ParsePrice(pf.TickSize)
		}
		if lf := sym.LotSizeFilter(); lf != nil {
			f.StepSize = convert.ParsePrice(lf.StepSize)
			f.MinQty = convert.ParsePrice(lf.MinQuantity)
		}
		if nf := sym.MinNotionalFilter(); nf != nil {
			f.MinNotional = convert.ParsePrice(nf.Notional)
		}
		out[sym.Symbol] = f
	}
	return out, nil
}

func (g *Gateway) MarkPrices(ctx context.Context) (map[string]float64, error) {
	g.meter.add(weightPremiumIndex)
	indexes, err := g.client.NewPremiumIndexService().Do(ctx)
	if err != nil {
		return nil, classifyBan(err)
	}
	out := make(map[string]float64, len(indexes))
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		out[idx.Symbol] = convert.ParsePrice(idx.MarkPrice)
	}
	return out, nil
}

func (g *Gateway) EquityUSD(ctx context.Context) (float64, error) {
	g.meter.add(weightBalance)
	balances, err := g.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, classifyBan(err)
	}
	for _, b := range balances {
		if b != nil && strings.EqualFold(b.Asset, "USDT") {
			return convert.ParsePrice(b.Balance), nil
		}
	}
	return 0, nil
}

// SubmitBatch 逐 symbol 挂出入场/止损/止盈三单。止盈单命中标记价
// 闸门（-2021）时暂缓，不算失败；其余失败逐单透出，不短路。
func (g *Gateway) SubmitBatch(ctx context.Context, intents []types.OrderIntent) (exchange.SubmitResult, error) {
	result := exchange.SubmitResult{Success: true}
	for _, intent := range intents {
		outcome := g.submitOne(ctx, intent)
		if outcome.Error != "" {
			result.Success = false
		}
		result.Orders = append(result.Orders, outcome)
	}
	return result, nil
}

func (g *Gateway) submitOne(ctx context.Context, intent types.OrderIntent) exchange.OrderOutcome {
	outcome := exchange.OrderOutcome{Symbol: intent.Symbol, Status: "submitted"}

	entrySide, exitSide := futures.SideTypeBuy, futures.SideTypeSell
	if intent.Side == types.SideShort {
		entrySide, exitSide = futures.SideTypeSell, futures.SideTypeBuy
	}

	if intent.Leverage > 0 {
		g.meter.add(weightLeverage)
		if _, err := g.client.NewChangeLeverageService().
			Symbol(intent.Symbol).Leverage(intent.Leverage).Do(ctx); err != nil {
			outcome.Status = "rejected"
			outcome.Error = fmt.Sprintf("set leverage: %v", classifyBan(err))
			return outcome
		}
	}

	g.meter.add(weightOrder)
	entry, err := g.client.NewCreateOrderService().
		Symbol(intent.Symbol).
		Side(entrySide).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(convert.FormatQty(intent.Qty)).
		Price(convert.FormatQty(intent.Entry)).
		NewClientOrderID(intent.ClientID).
		Do(ctx)
	if err != nil {
		outcome.Status = "rejected"
		outcome.Error = fmt.Sprintf("entry: %v", classifyBan(err))
		return outcome
	}
	outcome.EntryOrder = echoFromResponse(entry)

	g.meter.add(weightOrder)
	sl, err := g.client.NewCreateOrderService().
		Symbol(intent.Symbol).
		Side(exitSide).
		Type(futures.OrderTypeStopMarket).
		Quantity(convert.FormatQty(intent.Qty)).
		StopPrice(convert.FormatQty(intent.StopLoss)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		outcome.Status = "partial"
		outcome.Error = fmt.Sprintf("sl: %v", classifyBan(err))
		return outcome
	}
	outcome.SLOrder = echoFromResponse(sl)

	g.meter.add(weightOrder)
	tp, err := g.client.NewCreateOrderService().
		Symbol(intent.Symbol).
		Side(exitSide).
		Type(futures.OrderTypeTakeProfitMarket).
		Quantity(convert.FormatQty(intent.Qty)).
		StopPrice(convert.FormatQty(intent.TakeProfit)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		if isImmediateTrigger(err) {
			// 标记价已越过触发价，交易所暂缓该止盈单
			logger.Warnf("binance: %s 止盈单被标记价闸门暂缓: %v", intent.Symbol, err)
			return outcome
		}
		outcome.Status = "partial"
		outcome.Error = fmt.Sprintf("tp: %v", classifyBan(err))
		return outcome
	}
	outcome.TPOrder = echoFromResponse(tp)
	return outcome
}

func echoFromResponse(resp *futures.CreateOrderResponse) *exchange.EchoedOrder {
	if resp == nil {
		return nil
	}
	return &exchange.EchoedOrder{
		OrderID:   resp.OrderID,
		ClientID:  resp.ClientOrderID,
		Status:    string(resp.Status),
		Price:     convert.ParsePrice(resp.Price),
		StopPrice: convert.ParsePrice(resp.StopPrice),
	}
}

// Console 做一次合并对账拉取。凭据未配置或无权限时返回空快照而非
// 错误：没有用户数据就是没有挂单没有持仓，不该把轮询打进失败循环。
func (g *Gateway) Console(ctx context.Context) (types.ConsoleSnapshot, error) {
	snap := types.ConsoleSnapshot{
		Marks:     map[string]float64{},
		UpdatedAt: time.Now().UTC(),
	}
	if !g.hasCreds {
		snap.Usage = types.RateLimitState{UsedWeight: g.meter.usedWeight(), Limit: g.usageLimit}
		return snap, nil
	}

	g.meter.add(weightOpenOrders)
	orders, err := g.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		if isAuthError(err) {
			logger.Warnf("binance: 拉取挂单无权限，按空快照处理: %v", err)
			snap.Usage = types.RateLimitState{UsedWeight: g.meter.usedWeight(), Limit: g.usageLimit}
			return snap, nil
		}
		return types.ConsoleSnapshot{}, classifyBan(err)
	}
	for _, o := range orders {
		if o == nil {
			continue
		}
		if isConditional(o.Type) {
			snap.Waiting = append(snap.Waiting, types.WaitingOrder{
				Symbol:       o.Symbol,
				OrderID:      o.OrderID,
				Type:         string(o.Type),
				TriggerPrice: convert.ParsePrice(o.StopPrice),
				Qty:          convert.ParsePrice(o.OrigQuantity),
				Side:         string(o.Side),
			})
			continue
		}
		snap.OpenOrders = append(snap.OpenOrders, types.OpenOrder{
			Symbol:        o.Symbol,
			OrderID:       o.OrderID,
			ClientOrderID: o.ClientOrderID,
			Side:          string(o.Side),
			Type:          string(o.Type),
			Price:         convert.ParsePrice(o.Price),
			StopPrice:     convert.ParsePrice(o.StopPrice),
			Qty:           convert.ParsePrice(o.OrigQuantity),
			FilledQty:     convert.ParsePrice(o.ExecutedQuantity),
			ReduceOnly:    o.ReduceOnly,
			UpdatedAt:     time.UnixMilli(o.UpdateTime),
		})
	}

	g.meter.add(weightPositionRisk)
	positions, err := g.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		if isAuthError(err) {
			logger.Warnf("binance: 拉取持仓无权限，按空快照处理: %v", err)
			snap.Usage = types.RateLimitState{UsedWeight: g.meter.usedWeight(), Limit: g.usageLimit}
			return snap, nil
		}
		return types.ConsoleSnapshot{}, classifyBan(err)
	}
	for _, p := range positions {
		if p == nil {
			continue
		}
		amt := convert.ParsePrice(p.PositionAmt)
		if amt == 0 {
			continue
		}
		side := "LONG"
		if amt < 0 {
			side = "SHORT"
		}
		snap.Positions = append(snap.Positions, types.Position{
			Symbol:        p.Symbol,
			Side:          side,
			Amount:        amt,
			EntryPrice:    convert.ParsePrice(p.EntryPrice),
			MarkPrice:     convert.ParsePrice(p.MarkPrice),
			UnrealizedPnL: convert.ParsePrice(p.UnRealizedProfit),
			Leverage:      convert.ParsePrice(p.Leverage),
		})
		snap.Marks[p.Symbol] = convert.ParsePrice(p.MarkPrice)
	}

	snap.Usage = types.RateLimitState{
		UsedWeight: g.meter.usedWeight(),
		Limit:      g.usageLimit,
	}
	return snap, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	g.meter.add(weightOrder)
	_, err := g.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		if isUnknownOrder(err) {
			// 订单已结，重复撤销视为 no-op
			return nil
		}
		return classifyBan(err)
	}
	return nil
}

// Flatten 市价平仓。无持仓时直接返回 nil，保证幂等。
func (g *Gateway) Flatten(ctx context.Context, symbol, side string) error {
	g.meter.add(weightPositionRisk)
	positions, err := g.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return classifyBan(err)
	}
	var amt float64
	for _, p := range positions {
		if p != nil && p.Symbol == symbol {
			amt = convert.ParsePrice(p.PositionAmt)
			break
		}
	}
	if amt == 0 {
		return nil
	}
	closeSide := futures.SideTypeSell
	qty := amt
	if amt < 0 {
		closeSide = futures.SideTypeBuy
		qty = -amt
	}
	if (strings.EqualFold(side, "SHORT") && amt > 0) ||
		(strings.EqualFold(side, "LONG") && amt < 0) {
		return fmt.Errorf("flatten %s: 持仓方向与请求不符", symbol)
	}
	g.meter.add(weightOrder)
	_, err = g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(closeSide).
		Type(futures.OrderTypeMarket).
		Quantity(convert.FormatQty(qty)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return classifyBan(err)
	}
	return nil
}

func isConditional(t futures.OrderType) bool {
	switch t {
	case futures.OrderTypeStop, futures.OrderTypeStopMarket,
		futures.OrderTypeTakeProfit, futures.OrderTypeTakeProfitMarket,
		futures.OrderTypeTrailingStopMarket:
		return true
	default:
		return false
	}
}
