package types

import "strings"

// CoinControl 是操作员对单个 symbol 的选择状态。
// 只影响下单参数的推导，不反写 FinalPick 本身。
type CoinControl struct {
	Symbol    string  `json:"symbol"`
	Include   bool    `json:"include"`
	Variant   string  `json:"variant"`
	TPLevel   int     `json:"tp_level"`
	AmountUSD float64 `json:"amount_usd"`
	Leverage  int     `json:"leverage"`
}

func (c CoinControl) Normalized() CoinControl {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.TPLevel != 1 && c.TPLevel != 2 {
		c.TPLevel = 1
	}
	return c
}

// DedupeControls 按 symbol 去重（首个生效），且只保留勾选项。
// 同一 symbol 在一个批次里只允许出现一次，避免重复提交。
func DedupeControls(controls []CoinControl) []CoinControl {
	seen := make(map[string]bool, len(controls))
	out := make([]CoinControl, 0, len(controls))
	for _, c := range controls {
		c = c.Normalized()
		if !c.Include || c.Symbol == "" || seen[c.Symbol] {
			continue
		}
		seen[c.Symbol] = true
		out = append(out, c)
	}
	return out
}
