// Package sizer turns a final pick plus risk policy into an
// exchange-compliant order plan. Plans are never persisted: every
// display or confirmation recomputes them from current inputs, so a
// chart can never diverge from what would actually be submitted.
package sizer

import (
	"fmt"
	"math"

	"tradecore/internal/pkg/numguard"
	"tradecore/internal/types"
)

// Input 是一次仓位计算的全部输入。
type Input struct {
	RiskFraction float64
	EquityUSD    float64
	Filters      types.ExchangeFilters
	// TickGuardMultiple 要求 R >= N×tickSize，过紧的结构无法用该
	// symbol 的最小报价单位表达，直接拒绝。
	TickGuardMultiple float64
	TPLevel           int
	Leverage          int
}

// Plan 是某个 pick 的完整下单计划，含违规清单（空 ⇒ 有效）。
type Plan struct {
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"`
	TPLevel    int        `json:"tp_level"`
	Entry      float64    `json:"entry"`
	StopLoss   float64    `json:"sl"`
	TakeProfit float64    `json:"tp"`
	Qty        float64    `json:"qty"`
	Notional   float64    `json:"notional"`
	LossAtSL   float64    `json:"loss_at_sl"`
	PnLAtTP1   float64    `json:"pnl_at_tp1"`
	PnLAtTP2   float64    `json:"pnl_at_tp2"`
	Leverage   int        `json:"leverage"`
	Violations []string   `json:"violations,omitempty"`
}

func (p Plan) Valid() bool { return len(p.Violations) == 0 }

// Size 按风险预算计算数量与名义价值，并套用交易所过滤器。
func Size(pick types.FinalPick, in Input) Plan {
	plan := Plan{
		Symbol:   pick.Symbol,
		Side:     pick.Side,
		TPLevel:  in.TPLevel,
		Leverage: in.Leverage,
	}
	if plan.TPLevel != 1 && plan.TPLevel != 2 {
		plan.TPLevel = 1
	}

	filters := in.Filters
	if !filters.Complete() {
		plan.Violations = append(plan.Violations, "filters missing")
	}

	r := pick.R()
	riskUSD := in.EquityUSD * in.RiskFraction
	rawQty := 0.0
	if r > 0 {
		rawQty = riskUSD / r
	}

	plan.Entry = numguard.RoundToTick(pick.Entry, filters.TickSize)
	plan.StopLoss = numguard.RoundToTick(pick.StopLoss, filters.TickSize)
	tp, err := pick.TakeProfitAt(plan.TPLevel)
	if err != nil {
		tp = pick.TakeProfit1
	}
	plan.TakeProfit = numguard.RoundToTick(tp, filters.TickSize)

	qty := numguard.RoundDown(rawQty, filters.StepSize)
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		qty = 0
	}
	plan.Qty = qty
	plan.Notional = qty * plan.Entry
	plan.LossAtSL = qty * r
	plan.PnLAtTP1 = qty * math.Abs(pick.TakeProfit1-pick.Entry)
	plan.PnLAtTP2 = qty * math.Abs(pick.TakeProfit2-pick.Entry)

	if qty <= 0 {
		plan.Violations = append(plan.Violations, "qty <= 0")
	} else {
		if qty < filters.MinQty {
			plan.Violations = append(plan.Violations,
				fmt.Sprintf("qty %v < minQty %v", qty, filters.MinQty))
		}
		if plan.Notional < filters.MinNotional {
			plan.Violations = append(plan.Violations,
				fmt.Sprintf("notional %v < minNotional %v", plan.Notional, filters.MinNotional))
		}
	}

	guard := in.TickGuardMultiple
	if guard <= 0 {
		guard = 5
	}
	if filters.TickSize > 0 && r < guard*filters.TickSize {
		plan.Violations = append(plan.Violations, "R too tight")
	}

	return plan
}
