// Package submit turns the operator's selection into exchange orders.
// 提交路径上的一切都现算现核：计划从当前 pick/控制状态重新推导，
// 与即将发出的意图逐字段比对，不一致就整批中止。
package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/gate"
	"tradecore/internal/gateway/exchange"
	"tradecore/internal/logger"
	"tradecore/internal/pkg/numguard"
	"tradecore/internal/sizer"
	"tradecore/internal/types"

	"github.com/google/uuid"
)

// Request 是一次提交的全部输入。
type Request struct {
	Posture  types.Posture
	Picks    []types.FinalPick
	Controls []types.CoinControl
}

// Report 是一次提交的完整记录，含非阻断的提示性告警。
type Report struct {
	Intents     []types.OrderIntent   `json:"intents"`
	Plans       map[string]sizer.Plan `json:"plans"`
	Warnings    []string              `json:"warnings,omitempty"`
	Result      exchange.SubmitResult `json:"result"`
	EchoIssues  []string              `json:"echo_issues,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
}

type Submitter struct {
	gateway exchange.Gateway
	policy  config.PolicyConfig
}

func NewSubmitter(gw exchange.Gateway, policy config.PolicyConfig) *Submitter {
	return &Submitter{gateway: gw, policy: policy}
}

// Submit 执行完整提交流程：推导计划 → 严格复核 → 批量下单 → 回显比对。
// 计划违规或复核不一致都在下单前中止；回显不一致只记录，不自动撤补。
func (s *Submitter) Submit(ctx context.Context, req Request) (Report, error) {
	report := Report{Plans: map[string]sizer.Plan{}, SubmittedAt: time.Now().UTC()}

	if !req.Posture.Tradeable() {
		return report, fmt.Errorf("submit: 当前姿态 %s 不允许开仓", req.Posture)
	}
	controls := types.DedupeControls(req.Controls)
	if len(controls) == 0 {
		return report, fmt.Errorf("submit: 没有勾选任何 symbol")
	}

	picksBySymbol := make(map[string]types.FinalPick, len(req.Picks))
	for _, p := range req.Picks {
		picksBySymbol[p.Symbol] = p
	}

	filters, err := s.gateway.Filters(ctx)
	if err != nil {
		return report, fmt.Errorf("submit: 拉取交易所过滤器失败: %w", err)
	}
	equity, err := s.gateway.EquityUSD(ctx)
	if err != nil || equity <= 0 {
		if s.policy.StaticEquityUSD <= 0 {
			return report, fmt.Errorf("submit: 账户权益不可用且未配置 static_equity_usd: %w", err)
		}
		logger.Warnf("submit: 账户权益不可用，回退到 static_equity_usd=%v (err=%v)", s.policy.StaticEquityUSD, err)
		equity = s.policy.StaticEquityUSD
	}
	marks, err := s.gateway.MarkPrices(ctx)
	if err != nil {
		// 标记价只用于提示，拉不到不阻断提交
		logger.Warnf("submit: 拉取标记价失败，跳过提示检查: %v", err)
		marks = nil
	}

	var violations []string
	for _, control := range controls {
		pick, ok := picksBySymbol[control.Symbol]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s 勾选了但本轮没有对应 pick", control.Symbol))
			continue
		}
		plan := s.buildPlan(pick, control, filters[control.Symbol], equity)
		report.Plans[control.Symbol] = plan
		if !plan.Valid() {
			violations = append(violations,
				fmt.Sprintf("%s 计划无效: %s", control.Symbol, strings.Join(plan.Violations, ", ")))
			continue
		}
		report.Intents = append(report.Intents, types.OrderIntent{
			Symbol:     plan.Symbol,
			Side:       plan.Side,
			Entry:      plan.Entry,
			StopLoss:   plan.StopLoss,
			TakeProfit: plan.TakeProfit,
			Qty:        plan.Qty,
			Notional:   plan.Notional,
			Leverage:   plan.Leverage,
			ClientID:   "tc-" + uuid.NewString()[:18],
		})
	}
	if len(violations) > 0 {
		return report, fmt.Errorf("submit: 批次作废: %s", strings.Join(violations, "; "))
	}
	if len(report.Intents) == 0 {
		return report, fmt.Errorf("submit: 没有可提交的意图")
	}

	// 提交前的严格 1:1 复核：任何一个字段分叉都整批中止
	if mismatches := gate.VerifyIntents(report.Intents, report.Plans); len(mismatches) > 0 {
		return report, fmt.Errorf("submit: 提交前复核失败，中止整批: %s", gate.FormatMismatches(mismatches))
	}

	report.Warnings = append(report.Warnings, markWarnings(report.Intents, marks)...)
	for _, w := range report.Warnings {
		logger.Warnf("submit: %s", w)
	}

	result, err := s.gateway.SubmitBatch(ctx, report.Intents)
	if err != nil {
		return report, fmt.Errorf("submit: 批量下单失败: %w", err)
	}
	report.Result = result

	report.EchoIssues = s.verifyEchoes(report.Intents, result)
	for _, issue := range report.EchoIssues {
		// 回显不一致说明交易所侧状态与意图分叉，只告警，由操作员处置
		logger.Errorf("submit: 回显不一致: %s", issue)
	}
	return report, nil
}

// Preview 用当前 picks/控制状态推导每个勾选 symbol 的下单计划，
// 不做任何提交。控制台展示走这条路径，和提交用同一套推导，
// 看到的就是会提交的。
func (s *Submitter) Preview(ctx context.Context, req Request) (map[string]sizer.Plan, error) {
	plans := map[string]sizer.Plan{}
	controls := types.DedupeControls(req.Controls)
	if len(controls) == 0 {
		return plans, nil
	}
	picksBySymbol := make(map[string]types.FinalPick, len(req.Picks))
	for _, p := range req.Picks {
		picksBySymbol[p.Symbol] = p
	}
	filters, err := s.gateway.Filters(ctx)
	if err != nil {
		return nil, fmt.Errorf("preview: 拉取交易所过滤器失败: %w", err)
	}
	equity, err := s.gateway.EquityUSD(ctx)
	if err != nil || equity <= 0 {
		equity = s.policy.StaticEquityUSD
	}
	for _, control := range controls {
		pick, ok := picksBySymbol[control.Symbol]
		if !ok {
			continue
		}
		plans[control.Symbol] = s.buildPlan(pick, control, filters[control.Symbol], equity)
	}
	return plans, nil
}

func (s *Submitter) buildPlan(pick types.FinalPick, control types.CoinControl, filters types.ExchangeFilters, equity float64) sizer.Plan {
	leverage := control.Leverage
	if leverage <= 0 {
		leverage = pick.LeverageHint
	}
	if leverage > s.policy.MaxLeverage {
		leverage = s.policy.MaxLeverage
	}
	plan := sizer.Size(pick, sizer.Input{
		RiskFraction:      pick.RiskPct,
		EquityUSD:         equity,
		Filters:           filters,
		TickGuardMultiple: s.policy.MinTickMultiple,
		TPLevel:           control.TPLevel,
		Leverage:          leverage,
	})
	if control.AmountUSD > 0 && plan.Entry > 0 {
		// 操作员指定了名义金额，用它覆盖风险推导的数量
		qty := numguard.RoundDown(control.AmountUSD/plan.Entry, filters.StepSize)
		if qty > 0 {
			plan.Qty = qty
			plan.Notional = qty * plan.Entry
			plan.LossAtSL = qty * pick.R()
		}
	}
	return plan
}

// markWarnings 生成提示性告警：标记价已越过入场/触发价时提交仍会
// 继续，但结果可能是立即成交或止盈被暂缓。
func markWarnings(intents []types.OrderIntent, marks map[string]float64) []string {
	if len(marks) == 0 {
		return nil
	}
	var out []string
	for _, it := range intents {
		mark, ok := marks[it.Symbol]
		if !ok || mark <= 0 {
			continue
		}
		switch it.Side {
		case types.SideLong:
			if mark <= it.StopLoss {
				out = append(out, fmt.Sprintf("%s 标记价 %v 已低于止损 %v", it.Symbol, mark, it.StopLoss))
			}
			if mark >= it.TakeProfit {
				out = append(out, fmt.Sprintf("%s 标记价 %v 已高于止盈 %v，止盈单可能被暂缓", it.Symbol, mark, it.TakeProfit))
			}
		case types.SideShort:
			if mark >= it.StopLoss {
				out = append(out, fmt.Sprintf("%s 标记价 %v 已高于止损 %v", it.Symbol, mark, it.StopLoss))
			}
			if mark <= it.TakeProfit {
				out = append(out, fmt.Sprintf("%s 标记价 %v 已低于止盈 %v，止盈单可能被暂缓", it.Symbol, mark, it.TakeProfit))
			}
		}
	}
	return out
}

func (s *Submitter) verifyEchoes(intents []types.OrderIntent, result exchange.SubmitResult) []string {
	intentBySymbol := make(map[string]types.OrderIntent, len(intents))
	for _, it := range intents {
		intentBySymbol[it.Symbol] = it
	}
	var issues []string
	for _, outcome := range result.Orders {
		intent, ok := intentBySymbol[outcome.Symbol]
		if !ok || outcome.EntryOrder == nil {
			continue
		}
		echo := gate.EchoedOrder{
			Symbol: outcome.Symbol,
			Entry:  outcome.EntryOrder.Price,
		}
		if outcome.SLOrder != nil {
			echo.StopLoss = outcome.SLOrder.StopPrice
		} else {
			echo.StopLoss = intent.StopLoss
		}
		if outcome.TPOrder != nil {
			echo.HasTP = true
			echo.TakeProfit = outcome.TPOrder.StopPrice
		}
		if ms := gate.VerifyEcho(intent, echo); len(ms) > 0 {
			issues = append(issues, gate.FormatMismatches(ms))
		}
	}
	return issues
}
