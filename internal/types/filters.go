package types

import "math"

// ExchangeFilters 是交易所对单个 symbol 的量化约束，只读参考数据。
type ExchangeFilters struct {
	Symbol      string  `json:"symbol"`
	TickSize    float64 `json:"tick_size"`
	StepSize    float64 `json:"step_size"`
	MinQty      float64 `json:"min_qty"`
	MinNotional float64 `json:"min_notional"`
}

// Complete 判断过滤器数据是否齐备且有限。不齐备的 symbol 一律拒单。
func (f ExchangeFilters) Complete() bool {
	for _, v := range []float64{f.TickSize, f.StepSize, f.MinQty, f.MinNotional} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return f.TickSize > 0 && f.StepSize > 0
}
