// Package numguard provides exchange-grade price/quantity quantization.
// All rounding goes through decimal to avoid float drift near tick
// boundaries (e.g. 0.1+0.2 style artifacts breaking minQty checks).
package numguard

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundToTick 将价格对齐到最近的 tick 整数倍。tick<=0 时原样返回。
func RoundToTick(value, tick float64) float64 {
	if tick <= 0 {
		return value
	}
	if !isFinite(value) || !isFinite(tick) {
		return value
	}
	v := decimal.NewFromFloat(value)
	t := decimal.NewFromFloat(tick)
	steps := v.Div(t).Round(0)
	out, _ := steps.Mul(t).Float64()
	return out
}

// RoundDown 将数量向下对齐到 step 的整数倍，避免超出风险预算。
// step<=0 返回 NaN，提示上游过滤器数据缺失。
func RoundDown(value, step float64) float64 {
	if step <= 0 {
		return math.NaN()
	}
	if !isFinite(value) || !isFinite(step) {
		return value
	}
	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	steps := v.Div(s).Floor()
	out, _ := steps.Mul(s).Float64()
	return out
}

// EqualWithin 在给定容差内比较两个数值，非有限值一律视为不相等。
func EqualWithin(a, b, tol float64) bool {
	if !isFinite(a) || !isFinite(b) {
		return false
	}
	return math.Abs(a-b) <= tol
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
