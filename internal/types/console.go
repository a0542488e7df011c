package types

import "time"

// 以下快照类型由 ReconciliationPoller 独占写入，每个 tick 整体替换，
// 绝不逐字段打补丁，读者看到的永远是同一时刻的状态。

type OpenOrder struct {
	Symbol        string    `json:"symbol"`
	OrderID       int64     `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Price         float64   `json:"price"`
	StopPrice     float64   `json:"stop_price"`
	Qty           float64   `json:"qty"`
	FilledQty     float64   `json:"filled_qty"`
	ReduceOnly    bool      `json:"reduce_only"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Amount        float64 `json:"amount"`
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Leverage      float64 `json:"leverage"`
}

// WaitingOrder 是尚未触发的条件单（止损/止盈挂单）。
type WaitingOrder struct {
	Symbol       string  `json:"symbol"`
	OrderID      int64   `json:"order_id"`
	Type         string  `json:"type"`
	TriggerPrice float64 `json:"trigger_price"`
	Qty          float64 `json:"qty"`
	Side         string  `json:"side"`
}

// RateLimitState 记录 API 权重占用与封禁窗口，只由 poller 更新。
type RateLimitState struct {
	UsedWeight  int       `json:"used_weight"`
	Limit       int       `json:"limit"`
	BannedUntil time.Time `json:"banned_until"`
}

// Banned 返回当前是否处于封禁窗口内，以及剩余时长（非负）。
func (s RateLimitState) Banned(now time.Time) (bool, time.Duration) {
	if s.BannedUntil.IsZero() || !now.Before(s.BannedUntil) {
		return false, 0
	}
	return true, s.BannedUntil.Sub(now)
}

// ConsoleSnapshot 是一次合并对账拉取的完整结果。
type ConsoleSnapshot struct {
	OpenOrders []OpenOrder        `json:"open_orders"`
	Positions  []Position         `json:"positions"`
	Waiting    []WaitingOrder     `json:"waiting"`
	Marks      map[string]float64 `json:"marks"`
	Usage      RateLimitState     `json:"usage"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// HasExposure 判断 symbol 是否已有持仓或在途挂单。
func (s ConsoleSnapshot) HasExposure(symbol string) bool {
	for _, p := range s.Positions {
		if p.Symbol == symbol && p.Amount != 0 {
			return true
		}
	}
	for _, o := range s.OpenOrders {
		if o.Symbol == symbol {
			return true
		}
	}
	for _, w := range s.Waiting {
		if w.Symbol == symbol {
			return true
		}
	}
	return false
}
