package decision

import (
	"time"

	"tradecore/internal/types"
)

// MarketSnapshot 是行情服务返回的市场快照（候选池 + 衍生字段）。
type MarketSnapshot struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	Universe    []types.Candidate             `json:"universe"`
	Fields      map[string]map[string]float64 `json:"fields,omitempty"`
}

// CompactView 是发给决策服务的压缩视图。
type CompactView struct {
	Symbols []string                      `json:"symbols"`
	Fields  map[string]map[string]float64 `json:"fields,omitempty"`
}

// MarketDecision 是决策服务的裁决：整体姿态与风险上限。
type MarketDecision struct {
	Flag          string        `json:"flag"`
	Posture       types.Posture `json:"-"`
	MarketHealth  float64       `json:"market_health"`
	ExpiryMinutes int           `json:"expiry_minutes"`
	Reasons       []string      `json:"reasons"`
	RiskCap       float64       `json:"risk_cap"`
}

// PickerInput 是选币服务的请求载荷。
type PickerInput struct {
	Posture       types.Posture     `json:"posture"`
	Candidates    []types.Candidate `json:"candidates"`
	ExpiryMinutes int               `json:"expiry_minutes"`
	RiskPct       float64           `json:"risk_pct"`
	MaxLeverage   int               `json:"max_leverage"`
}

// PickerResult 对应选币服务的响应信封。
type PickerResult struct {
	OK        bool              `json:"ok"`
	Code      string            `json:"code"`
	LatencyMS int64             `json:"latency_ms"`
	Picks     []types.FinalPick `json:"-"`
	Meta      map[string]any    `json:"meta,omitempty"`
}
