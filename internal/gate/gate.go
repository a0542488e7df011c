// Package gate is the consistency gate in front of the network
// boundary. Everything here fails closed: a detected mismatch is never
// downgraded to a warning.
package gate

import (
	"fmt"
	"math"
	"strings"

	"tradecore/internal/config"
	"tradecore/internal/pkg/numguard"
	"tradecore/internal/sizer"
	"tradecore/internal/types"
)

const (
	// riskTol 允许 posture 推导的风险比例存在浮点级误差。
	riskTol = 1e-6
	// strictTol 是提交前 1:1 复核的位级容差。
	strictTol = 1e-12
	// echoTol 是交易所回显比对容差。
	echoTol = 1e-9
)

// BatchError 汇总一轮 picks 的全部违规。只要有一条，整批作废：
// 宁可整轮重跑，也不要静默吞掉单个坏 pick 背后的系统性缺陷。
type BatchError struct {
	Violations []string
}

func (e *BatchError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "batch invalid"
	}
	return fmt.Sprintf("batch invalid (%d violations): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// CheckBatch 对一轮产出的所有 picks 做策略校验（展示前置）。
func CheckBatch(picks []types.FinalPick, posture types.Posture, policy config.PolicyConfig) error {
	var violations []string
	impliedRisk := policy.RiskFraction(posture)
	for _, p := range picks {
		if err := p.Validate(); err != nil {
			violations = append(violations, err.Error())
			continue
		}
		if math.Abs(p.RiskPct-impliedRisk) > riskTol {
			violations = append(violations,
				fmt.Sprintf("%s risk_pct %v != posture %s implied %v", p.Symbol, p.RiskPct, posture, impliedRisk))
		}
		if p.LeverageHint > policy.MaxLeverage {
			violations = append(violations,
				fmt.Sprintf("%s leverage_hint %d > max %d", p.Symbol, p.LeverageHint, policy.MaxLeverage))
		}
		if p.ExpiryMinutes < policy.ExpiryMinMinutes || p.ExpiryMinutes > policy.ExpiryMaxMinutes {
			violations = append(violations,
				fmt.Sprintf("%s expiry_minutes %d outside [%d, %d]", p.Symbol, p.ExpiryMinutes,
					policy.ExpiryMinMinutes, policy.ExpiryMaxMinutes))
		}
	}
	if len(violations) > 0 {
		return &BatchError{Violations: violations}
	}
	return nil
}

// Mismatch 描述单个字段的期望值与实际值。
type Mismatch struct {
	Symbol   string  `json:"symbol"`
	Field    string  `json:"field"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s.%s expected=%v actual=%v", m.Symbol, m.Field, m.Expected, m.Actual)
}

// VerifyIntents 是提交前的严格 1:1 复核：用当前选中的计划重新推导
// entry/sl/tp/qty，并逐字段比对意图。任何不一致都表示控制状态与
// 下单载荷已经分叉，必须整批中止。
func VerifyIntents(intents []types.OrderIntent, plans map[string]sizer.Plan) []Mismatch {
	var out []Mismatch
	for _, intent := range intents {
		plan, ok := plans[intent.Symbol]
		if !ok {
			out = append(out, Mismatch{Symbol: intent.Symbol, Field: "plan", Expected: math.NaN(), Actual: math.NaN()})
			continue
		}
		out = appendMismatch(out, intent.Symbol, "entry", plan.Entry, intent.Entry, strictTol)
		out = appendMismatch(out, intent.Symbol, "sl", plan.StopLoss, intent.StopLoss, strictTol)
		out = appendMismatch(out, intent.Symbol, "tp", plan.TakeProfit, intent.TakeProfit, strictTol)
		out = appendMismatch(out, intent.Symbol, "qty", plan.Qty, intent.Qty, strictTol)
	}
	return out
}

// EchoedOrder 是交易所确认回显中的关键价格。止盈单可能因标记价闸门
// 被暂缓挂出，所以回显缺失 TP 不算错，回显了但不一致才是错。
type EchoedOrder struct {
	Symbol     string
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	HasTP      bool
}

// VerifyEcho 比对提交意图与交易所回显。
func VerifyEcho(intent types.OrderIntent, echo EchoedOrder) []Mismatch {
	var out []Mismatch
	out = appendMismatch(out, intent.Symbol, "entry", intent.Entry, echo.Entry, echoTol)
	out = appendMismatch(out, intent.Symbol, "sl", intent.StopLoss, echo.StopLoss, echoTol)
	if echo.HasTP {
		out = appendMismatch(out, intent.Symbol, "tp", intent.TakeProfit, echo.TakeProfit, echoTol)
	}
	return out
}

func appendMismatch(out []Mismatch, symbol, field string, expected, actual, tol float64) []Mismatch {
	if numguard.EqualWithin(expected, actual, tol) {
		return out
	}
	return append(out, Mismatch{Symbol: symbol, Field: field, Expected: expected, Actual: actual})
}

// FormatMismatches 把全部差异拼成一条可读诊断。
func FormatMismatches(ms []Mismatch) string {
	if len(ms) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "; ")
}
