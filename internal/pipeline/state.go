// Package pipeline drives one decision round end to end:
// 行情快照 → 市场裁决 → 候选筛选 → 最终选币 → 批次校验。
package pipeline

import "fmt"

// State 是流水线运行状态。一次 Run 严格单向推进，
// 任何阶段失败都落到 StateError，不存在回退边。
type State string

const (
	StateIdle                State = "Idle"
	StateFetching            State = "Fetching"
	StateDeciding            State = "Deciding"
	StateSelectingCandidates State = "SelectingCandidates"
	StateInvokingPicker      State = "InvokingPicker"
	StateValidating          State = "Validating"
	StateSuccess             State = "Success"
	StateSuccessNoPicks      State = "SuccessNoPicks"
	StateError               State = "Error"
)

// Terminal 返回该状态是否为终态。
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateSuccessNoPicks, StateError:
		return true
	default:
		return false
	}
}

// Event 是驱动状态迁移的事件。
type Event string

const (
	EventStart        Event = "start"
	EventSnapshotOK   Event = "snapshot_ok"
	EventDecisionOK   Event = "decision_ok"
	EventCandidatesOK Event = "candidates_ok"
	EventPicksOK      Event = "picks_ok"
	EventValidated    Event = "validated"
	EventNoPicks      Event = "no_picks"
	EventFail         Event = "fail"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateFetching,
	},
	StateFetching: {
		EventSnapshotOK: StateDeciding,
		EventFail:       StateError,
	},
	StateDeciding: {
		EventDecisionOK: StateSelectingCandidates,
		// NO_TRADE 裁决直接收尾，不再调选币服务
		EventNoPicks: StateSuccessNoPicks,
		EventFail:    StateError,
	},
	StateSelectingCandidates: {
		EventCandidatesOK: StateInvokingPicker,
		EventNoPicks:      StateSuccessNoPicks,
		EventFail:         StateError,
	},
	StateInvokingPicker: {
		EventPicksOK: StateValidating,
		EventNoPicks: StateSuccessNoPicks,
		EventFail:    StateError,
	},
	StateValidating: {
		EventValidated: StateSuccess,
		EventFail:      StateError,
	},
}

// Transition 返回状态机在 state 上吃到 event 后的下一个状态。
// 非法迁移返回错误，调用方视为编程错误而非运行时分支。
func Transition(state State, event Event) (State, error) {
	next, ok := transitions[state][event]
	if !ok {
		return state, fmt.Errorf("pipeline: 非法迁移 %s --%s-->", state, event)
	}
	return next, nil
}
