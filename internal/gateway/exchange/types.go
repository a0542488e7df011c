// Package exchange defines the boundary contract against the trading
// exchange. The core only constructs, validates, submits and reconciles
// orders against whatever this boundary reports; matching semantics
// stay on the exchange side.
package exchange

import (
	"context"
	"time"

	"tradecore/internal/types"
)

// EchoedOrder 是交易所对单笔订单的确认回显。
type EchoedOrder struct {
	OrderID   int64   `json:"order_id"`
	ClientID  string  `json:"client_id"`
	Status    string  `json:"status"`
	Price     float64 `json:"price"`
	StopPrice float64 `json:"stop_price"`
}

// OrderOutcome 是单个 symbol 提交后的三单结果（入场/止损/止盈）。
// TPOrder 可能为 nil：交易所可因标记价闸门暂缓挂出止盈单。
type OrderOutcome struct {
	Symbol     string       `json:"symbol"`
	Status     string       `json:"status"`
	EntryOrder *EchoedOrder `json:"entry_order,omitempty"`
	SLOrder    *EchoedOrder `json:"sl_order,omitempty"`
	TPOrder    *EchoedOrder `json:"tp_order,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// SubmitResult 汇总一个批次的所有结果，部分失败逐单透出。
type SubmitResult struct {
	Success bool           `json:"success"`
	Orders  []OrderOutcome `json:"orders"`
}

// BanError 表示触发了限频封禁，Until 为解除时间。
type BanError struct {
	Until time.Time
	Err   error
}

func (e *BanError) Error() string {
	if e == nil {
		return ""
	}
	return "rate limit ban until " + e.Until.UTC().Format(time.RFC3339)
}

func (e *BanError) Unwrap() error { return e.Err }

// Gateway 是执行核心依赖的全部交易所操作。
type Gateway interface {
	// Filters 返回全市场过滤器参考数据。
	Filters(ctx context.Context) (map[string]types.ExchangeFilters, error)
	// MarkPrices 返回全市场标记价。
	MarkPrices(ctx context.Context) (map[string]float64, error)
	// EquityUSD 返回账户权益（USDT 计）。
	EquityUSD(ctx context.Context) (float64, error)
	// SubmitBatch 按意图批次下单，逐单返回结果。
	SubmitBatch(ctx context.Context, intents []types.OrderIntent) (SubmitResult, error)
	// Console 做一次合并对账拉取（挂单+持仓+条件单+权重占用+标记价）。
	Console(ctx context.Context) (types.ConsoleSnapshot, error)
	// CancelOrder 撤销单笔订单；对已结订单重复撤销是无害错误。
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	// Flatten 市价平掉指定 symbol 持仓；无持仓时为 no-op。
	Flatten(ctx context.Context, symbol, side string) error
}
