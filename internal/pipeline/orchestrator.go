package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/gate"
	"tradecore/internal/gateway/decision"
	"tradecore/internal/logger"
	"tradecore/internal/types"

	"github.com/google/uuid"
)

// 单个阶段的硬超时。决策服务自身有重试预算，这里是兜底上限。
const stageTimeout = 30 * time.Second

// 一轮最多送入选币服务的候选数。
const maxCandidates = 12

// Decider 是流水线依赖的决策边界（快照/裁决/选币）。
type Decider interface {
	Snapshot(ctx context.Context) (decision.MarketSnapshot, error)
	Decide(ctx context.Context, view decision.CompactView) (decision.MarketDecision, error)
	FinalPicker(ctx context.Context, input decision.PickerInput) (decision.PickerResult, error)
}

// ExposureSource 提供当前持仓/挂单快照，用于候选去重。
type ExposureSource interface {
	Current() types.ConsoleSnapshot
}

// ErrRunInProgress 表示已有一轮在跑。流水线同一时刻只允许一轮，
// 并发触发直接拒绝而不是排队。
var ErrRunInProgress = errors.New("pipeline: 已有一轮在执行中")

// RunResult 是一轮流水线的完整产出。
type RunResult struct {
	RunID      string                  `json:"run_id"`
	State      State                   `json:"state"`
	Posture    types.Posture           `json:"posture"`
	Decision   decision.MarketDecision `json:"decision"`
	Candidates []types.Candidate       `json:"candidates,omitempty"`
	Picks      []types.FinalPick       `json:"picks,omitempty"`
	FailStage  string                  `json:"fail_stage,omitempty"`
	FailKind   string                  `json:"fail_kind,omitempty"`
	FailDetail string                  `json:"fail_detail,omitempty"`
	NoPickWhy  string                  `json:"no_pick_why,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// Orchestrator 串起一轮决策流水线。
type Orchestrator struct {
	decider  Decider
	exposure ExposureSource
	policy   config.PolicyConfig

	mu      sync.Mutex
	running bool
	last    RunResult
}

func NewOrchestrator(decider Decider, exposure ExposureSource, policy config.PolicyConfig) *Orchestrator {
	return &Orchestrator{decider: decider, exposure: exposure, policy: policy}
}

// LastResult 返回最近一轮的结果（零值表示尚未跑过）。
func (o *Orchestrator) LastResult() RunResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Run 执行一轮流水线。返回的 error 只反映并发拒绝；
// 阶段失败记录在 RunResult 里并以 StateError 终止。
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return RunResult{}, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()

	result := o.runOnce(ctx)

	o.mu.Lock()
	o.running = false
	o.last = result
	o.mu.Unlock()
	return result, nil
}

func (o *Orchestrator) runOnce(ctx context.Context) RunResult {
	result := RunResult{
		RunID:     uuid.NewString(),
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}
	defer func() { result.FinishedAt = time.Now().UTC() }()

	o.advance(&result, EventStart)
	logger.Infof("pipeline: run %s 开始", result.RunID)

	// Fetching
	snap, err := o.stageSnapshot(ctx)
	if err != nil {
		return o.fail(&result, "snapshot", err)
	}
	o.advance(&result, EventSnapshotOK)

	// Deciding
	dec, err := o.stageDecide(ctx, snap)
	if err != nil {
		return o.fail(&result, "decide", err)
	}
	result.Decision = dec
	result.Posture = dec.Posture
	if !dec.Posture.Tradeable() {
		result.NoPickWhy = fmt.Sprintf("posture %s", dec.Posture)
		o.advance(&result, EventNoPicks)
		logger.Infof("pipeline: run %s 裁决 %s，本轮不选币", result.RunID, dec.Posture)
		return result
	}
	o.advance(&result, EventDecisionOK)

	// SelectingCandidates
	candidates := o.selectCandidates(snap.Universe)
	result.Candidates = candidates
	if len(candidates) == 0 {
		result.NoPickWhy = "候选池为空（全部已有敞口或无信号）"
		o.advance(&result, EventNoPicks)
		return result
	}
	o.advance(&result, EventCandidatesOK)

	// InvokingPicker
	picks, err := o.stagePick(ctx, dec, candidates)
	if err != nil {
		return o.fail(&result, "final_picker", err)
	}
	if len(picks) == 0 {
		result.NoPickWhy = "选币服务未产出任何 pick"
		o.advance(&result, EventNoPicks)
		return result
	}
	result.Picks = picks
	o.advance(&result, EventPicksOK)

	// Validating：整批策略校验，任何一条违规整批作废
	if err := gate.CheckBatch(picks, dec.Posture, o.policy); err != nil {
		result.Picks = nil
		return o.fail(&result, "post_validation",
			&decision.CallError{Stage: "post_validation", Kind: decision.KindPostValidation, Err: err})
	}
	o.advance(&result, EventValidated)
	logger.Infof("pipeline: run %s 完成，产出 %d picks", result.RunID, len(picks))
	return result
}

func (o *Orchestrator) stageSnapshot(ctx context.Context) (decision.MarketSnapshot, error) {
	stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	return o.decider.Snapshot(stageCtx)
}

func (o *Orchestrator) stageDecide(ctx context.Context, snap decision.MarketSnapshot) (decision.MarketDecision, error) {
	stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	view := decision.CompactView{Fields: snap.Fields}
	for _, c := range snap.Universe {
		view.Symbols = append(view.Symbols, c.Symbol)
	}
	return o.decider.Decide(stageCtx, view)
}

func (o *Orchestrator) stagePick(ctx context.Context, dec decision.MarketDecision, candidates []types.Candidate) ([]types.FinalPick, error) {
	stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()
	res, err := o.decider.FinalPicker(stageCtx, decision.PickerInput{
		Posture:       dec.Posture,
		Candidates:    candidates,
		ExpiryMinutes: dec.ExpiryMinutes,
		RiskPct:       o.policy.RiskFraction(dec.Posture),
		MaxLeverage:   o.policy.MaxLeverage,
	})
	if err != nil {
		return nil, err
	}
	return res.Picks, nil
}

// selectCandidates 过滤掉已有敞口的 symbol，按 tier 升序、score 降序
// 截取前 maxCandidates 个。
func (o *Orchestrator) selectCandidates(universe []types.Candidate) []types.Candidate {
	var exposure types.ConsoleSnapshot
	if o.exposure != nil {
		exposure = o.exposure.Current()
	}
	var out []types.Candidate
	for _, c := range universe {
		if c.Symbol == "" {
			continue
		}
		if exposure.HasExposure(c.Symbol) {
			logger.Debugf("pipeline: %s 已有敞口，跳过候选", c.Symbol)
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

func (o *Orchestrator) advance(result *RunResult, event Event) {
	next, err := Transition(result.State, event)
	if err != nil {
		// 迁移表写错属于编程错误，直接 panic 暴露
		panic(err)
	}
	result.State = next
}

func (o *Orchestrator) fail(result *RunResult, stage string, err error) RunResult {
	result.State = StateError
	result.FailStage = stage
	result.FailKind = string(decision.KindOf(err))
	result.FailDetail = err.Error()
	logger.Errorf("pipeline: run %s 在 %s 阶段失败 (%s): %v", result.RunID, stage, result.FailKind, err)
	return *result
}
