package biz

import "fmt"

// State 是控制循环的状态。
type State string

const (
	StateAwaitDecision State = "AWAIT_DECISION"
	StateRetrieving    State = "RETRIEVING"
	StateGrading       State = "GRADING"
	StateRewriting     State = "REWRITING"
	StateAnswering     State = "ANSWERING"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// IsTerminal 报告是否为终止状态。
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Counted 报告进入该状态是否消耗一步。
func (s State) Counted() bool {
	return s == StateAwaitDecision || s == StateRetrieving
}

func (s State) String() string {
	return string(s)
}

// Event 驱动状态迁移。
type Event string

const (
	EventDirectAnswer    Event = "direct_answer"
	EventToolCall        Event = "tool_call"
	EventUnknownAction   Event = "unknown_action"
	EventParseFailed     Event = "parse_failed"
	EventRetrieved       Event = "retrieved"
	EventRelevant        Event = "relevant"
	EventNotRelevant     Event = "not_relevant"
	EventRewritten       Event = "rewritten"
	EventAnswered        Event = "answered"
	EventFallback        Event = "fallback"
	EventBudgetExhausted Event = "budget_exhausted"
	EventFailure         Event = "failure"
)

// transitions 是 (状态, 事件) → 状态 查找表。
var transitions = map[State]map[Event]State{
	StateAwaitDecision: {
		EventDirectAnswer:    StateDone,
		EventToolCall:        StateRetrieving,
		EventUnknownAction:   StateAwaitDecision,
		EventParseFailed:     StateAwaitDecision,
		EventBudgetExhausted: StateAnswering,
		EventFailure:         StateFailed,
	},
	StateRetrieving: {
		EventRetrieved: StateGrading,
		EventFailure:   StateFailed,
	},
	StateGrading: {
		EventRelevant:    StateAnswering,
		EventNotRelevant: StateRewriting,
		EventFailure:     StateFailed,
	},
	StateRewriting: {
		EventRewritten:       StateAwaitDecision,
		EventBudgetExhausted: StateAnswering,
		EventFailure:         StateFailed,
	},
	StateAnswering: {
		EventAnswered: StateDone,
		EventFallback: StateDone,
		EventFailure:  StateFailed,
	},
}

// Next 查表返回迁移目标。
func Next(from State, ev Event) (State, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return "", fmt.Errorf("no transition from %s on %s", from, ev)
	}
	return to, nil
}

// AllStates 返回全部状态。
func AllStates() []State {
	return []State{
		StateAwaitDecision,
		StateRetrieving,
		StateGrading,
		StateRewriting,
		StateAnswering,
		StateDone,
		StateFailed,
	}
}
