package biz

import (
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/agentic-rag/pkg/llm"
)

// FallbackAnswer 是步数耗尽且强制回答仍无法解析时的固定回复。
const FallbackAnswer = "抱歉，无法在限定步骤内得出答案。"

// NoResultObservation 是检索结果为空时写入历史的观察内容。
const NoResultObservation = "未找到相关信息"

// TurnKind 标记一条历史记录的类型。
type TurnKind string

const (
	TurnDecision    TurnKind = "decision"
	TurnObservation TurnKind = "observation"
	TurnError       TurnKind = "error"
	TurnGrade       TurnKind = "grade"
	TurnRewrite     TurnKind = "rewrite"
	TurnAnswer      TurnKind = "answer"
	TurnFallback    TurnKind = "fallback"
)

// Turn 是会话历史中的一条记录。
type Turn struct {
	// Step 所属步数。
	Step int `json:"step"`
	// Role 消息角色。
	Role llm.Role `json:"role"`
	// Kind 记录类型。
	Kind TurnKind `json:"kind"`
	// Content 消息正文。
	Content string `json:"content"`
	// Thought 决策时的思考内容。
	Thought string `json:"thought,omitempty"`
	// Action 决策选择的动作。
	Action string `json:"action,omitempty"`
	// ActionInput 动作参数。
	ActionInput string `json:"action_input,omitempty"`
	// ToolCallID 工具调用传输下的调用 ID。
	ToolCallID string `json:"tool_call_id,omitempty"`
	// At 记录时间。
	At time.Time `json:"at"`
}

// History 是只追加的会话历史。
type History struct {
	turns []Turn
}

// Append 追加一条记录。
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
}

// Len 返回记录数量。
func (h *History) Len() int {
	return len(h.turns)
}

// Turns 返回记录副本。
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Snippet 是一条检索片段。
type Snippet struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// RetrievalResult 是一次检索的结果，按相似度降序排列，允许为空。
type RetrievalResult struct {
	Query    string    `json:"query"`
	Snippets []Snippet `json:"snippets"`
}

// Empty 报告结果是否为空。
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Snippets) == 0
}

// Text 拼接全部片段正文，用于相关性评分。
func (r *RetrievalResult) Text() string {
	if r.Empty() {
		return ""
	}
	parts := make([]string, 0, len(r.Snippets))
	for _, s := range r.Snippets {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Observation 渲染写入历史的观察内容。
func (r *RetrievalResult) Observation() string {
	if r.Empty() {
		return NoResultObservation
	}
	parts := make([]string, 0, len(r.Snippets))
	for i, s := range r.Snippets {
		source := s.Source
		if source == "" {
			source = "未知"
		}
		parts = append(parts, fmt.Sprintf("[片段 %d] 来源: %s\n%s", i+1, source, s.Text))
	}
	return strings.Join(parts, "\n\n")
}

// DecisionKind 标记决策变体。
type DecisionKind int

const (
	// DecisionInvalid 模型输出无法解析。
	DecisionInvalid DecisionKind = iota
	// DecisionDirectAnswer 模型直接给出答案。
	DecisionDirectAnswer
	// DecisionToolCall 模型调用检索工具。
	DecisionToolCall
	// DecisionUnknownAction 模型调用了不存在的动作。
	DecisionUnknownAction
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionDirectAnswer:
		return "direct_answer"
	case DecisionToolCall:
		return "tool_call"
	case DecisionUnknownAction:
		return "unknown_action"
	default:
		return "invalid"
	}
}

// Decision 是一次决策调用的结果。只有与 Kind 对应的字段有意义。
type Decision struct {
	Kind DecisionKind
	// Thought 模型的思考内容。
	Thought string
	// Answer 用于 DirectAnswer。
	Answer string
	// Query 用于 ToolCall。
	Query string
	// Action 用于 ToolCall 与 UnknownAction。
	Action string
	// ToolCallID 工具调用传输下的调用 ID。
	ToolCallID string
	// Reason 用于 Invalid，说明拒绝原因。
	Reason string
	// Raw 模型原始输出。
	Raw string
}

// Transition 是会话轨迹中的一次状态迁移。
type Transition struct {
	Step   int       `json:"step"`
	From   State     `json:"from"`
	Event  Event     `json:"event"`
	To     State     `json:"to"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Result 是一次会话的完整结果。
type Result struct {
	// SessionID 会话 ID。
	SessionID string `json:"session_id"`
	// Question 原始问题。
	Question string `json:"question"`
	// ActiveQuestion 结束时的活动问题。
	ActiveQuestion string `json:"active_question"`
	// Answer 最终答案或兜底回复。
	Answer string `json:"answer"`
	// Fallback 是否为兜底回复。
	Fallback bool `json:"fallback"`
	// Forced 是否经过强制回答。
	Forced bool `json:"forced"`
	// State 终止状态。
	State State `json:"state"`
	// Steps 已消耗的步数。
	Steps int `json:"steps"`
	// Error 失败原因。
	Error string `json:"error,omitempty"`
	// Turns 会话历史。
	Turns []Turn `json:"turns"`
	// Transitions 状态迁移轨迹。
	Transitions []Transition `json:"transitions"`
	// Duration 会话耗时。
	Duration time.Duration `json:"duration"`
}

// Observer 接收会话过程中产生的记录。
type Observer interface {
	OnTurn(sessionID string, t Turn)
	OnTransition(sessionID string, tr Transition)
}

// ObserverFuncs 用函数实现 Observer，未设置的回调被忽略。
type ObserverFuncs struct {
	Turn       func(sessionID string, t Turn)
	Transition func(sessionID string, tr Transition)
}

// OnTurn implements Observer.
func (o ObserverFuncs) OnTurn(sessionID string, t Turn) {
	if o.Turn != nil {
		o.Turn(sessionID, t)
	}
}

// OnTransition implements Observer.
func (o ObserverFuncs) OnTransition(sessionID string, tr Transition) {
	if o.Transition != nil {
		o.Transition(sessionID, tr)
	}
}
