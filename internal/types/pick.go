package types

import (
	"fmt"
	"strings"
)

// Side 表示开仓方向。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func ParseSide(raw string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG":
		return SideLong, true
	case "SHORT":
		return SideShort, true
	default:
		return "", false
	}
}

// Candidate 是信号服务产出的候选标的，收到后不再修改。
type Candidate struct {
	Symbol     string  `json:"symbol"`
	Tier       int     `json:"tier"`
	Score      float64 `json:"score"`
	Volatility float64 `json:"volatility"`
	Liquidity  float64 `json:"liquidity_usd"`
}

// FinalPick 是一次流水线产出的完整交易候选（入场/止损/止盈齐备）。
// 每轮只生成一次，生成后不可变；下单参数一律从它现算。
type FinalPick struct {
	Symbol        string   `json:"symbol"`
	Label         string   `json:"label"`
	SetupType     string   `json:"setup_type"`
	Side          Side     `json:"side"`
	Entry         float64  `json:"entry"`
	StopLoss      float64  `json:"sl"`
	TakeProfit1   float64  `json:"tp1"`
	TakeProfit2   float64  `json:"tp2"`
	ExpiryMinutes int      `json:"expiry_minutes"`
	RiskPct       float64  `json:"risk_pct"`
	LeverageHint  int      `json:"leverage_hint"`
	Confidence    float64  `json:"confidence"`
	Reasons       []string `json:"reasons,omitempty"`
}

// Validate 检查多空方向下的价格排序不变量：
// LONG 要求 sl < entry < tp1 <= tp2，SHORT 镜像。
func (p FinalPick) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("symbol 不能为空")
	}
	switch p.Side {
	case SideLong:
		if !(p.StopLoss < p.Entry && p.Entry < p.TakeProfit1 && p.TakeProfit1 <= p.TakeProfit2) {
			return fmt.Errorf("%s LONG 要求 sl < entry < tp1 <= tp2 (sl=%v entry=%v tp1=%v tp2=%v)",
				p.Symbol, p.StopLoss, p.Entry, p.TakeProfit1, p.TakeProfit2)
		}
	case SideShort:
		if !(p.TakeProfit1 <= p.TakeProfit2 && p.TakeProfit2 < p.Entry && p.Entry < p.StopLoss) {
			return fmt.Errorf("%s SHORT 要求 tp1 <= tp2 < entry < sl (sl=%v entry=%v tp1=%v tp2=%v)",
				p.Symbol, p.StopLoss, p.Entry, p.TakeProfit1, p.TakeProfit2)
		}
	default:
		return fmt.Errorf("%s side 非法: %q", p.Symbol, p.Side)
	}
	return nil
}

// TakeProfitAt 返回指定档位的止盈价，档位只认 1/2。
func (p FinalPick) TakeProfitAt(level int) (float64, error) {
	switch level {
	case 1:
		return p.TakeProfit1, nil
	case 2:
		return p.TakeProfit2, nil
	default:
		return 0, fmt.Errorf("tp level 非法: %d", level)
	}
}

// R 返回入场价与止损价的绝对距离，是仓位计算的风险单元。
func (p FinalPick) R() float64 {
	d := p.Entry - p.StopLoss
	if d < 0 {
		return -d
	}
	return d
}
