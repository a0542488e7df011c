package types

// OrderIntent 是提交到交易所边界的最终下单参数。
// 永远在提交时刻由当前 FinalPick + CoinControl + 过滤器现场推导，
// 不缓存、不手改，因此不存在“过期意图”。
type OrderIntent struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	Qty        float64 `json:"qty"`
	Notional   float64 `json:"notional"`
	Leverage   int     `json:"leverage"`
	ClientID   string  `json:"client_id,omitempty"`
}
