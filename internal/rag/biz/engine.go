package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/grader"
	"github.com/kart-io/agentic-rag/internal/pkg/rag/rewriter"
	"github.com/kart-io/agentic-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/agentic-rag/internal/rag/metrics"
	apierrors "github.com/kart-io/agentic-rag/pkg/errors"
	"github.com/kart-io/agentic-rag/pkg/id"
	"github.com/kart-io/agentic-rag/pkg/infra/tracing"
	"github.com/kart-io/agentic-rag/pkg/llm"
)

const tracerName = "github.com/kart-io/agentic-rag/internal/rag/biz"

// budgetNotice 在步数耗尽、已选择的检索未执行时写入历史。
const budgetNotice = "[步数已用尽，检索未执行]"

// errSessionDeadline 标记引擎自身的会话超时。
var errSessionDeadline = errors.New("session deadline exceeded")

// Retriever 检索适配器。空结果是合法结果，不是错误。
type Retriever interface {
	Search(ctx context.Context, query string, k int) (*RetrievalResult, error)
}

// Grader 相关性评分。
type Grader interface {
	Grade(ctx context.Context, question, text string) (grader.Decision, error)
}

// Rewriter 查询改写。
type Rewriter interface {
	Rewrite(ctx context.Context, original string) (string, error)
}

// EngineConfig 控制循环配置。
type EngineConfig struct {
	// MaxSteps 步数上限。
	MaxSteps int
	// TopK 每次检索的片段数。
	TopK int
	// ParseRetries 决策输出无法解析时的重试次数。
	ParseRetries int
	// CallTimeout 单次外部调用超时，0 表示不限制。
	CallTimeout time.Duration
	// SessionTimeout 会话总超时，0 表示不限制。
	SessionTimeout time.Duration
}

// DefaultEngineConfig 返回默认配置。
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxSteps:     5,
		TopK:         3,
		ParseRetries: 2,
	}
}

// Validate 校验配置。
func (c EngineConfig) Validate() error {
	var errs []string
	if c.MaxSteps < 1 {
		errs = append(errs, "max steps must be at least 1")
	}
	if c.TopK < 1 {
		errs = append(errs, "top k must be at least 1")
	}
	if c.ParseRetries < 0 {
		errs = append(errs, "parse retries must not be negative")
	}
	if c.CallTimeout < 0 || c.SessionTimeout < 0 {
		errs = append(errs, "timeouts must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid engine config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EngineDeps 注入引擎的外部服务。
type EngineDeps struct {
	Decider   Decider
	Retriever Retriever
	Grader    Grader
	Rewriter  Rewriter
	Answerer  Answerer
	// Metrics 可选。
	Metrics *metrics.AgentMetrics
}

// Engine 驱动问答控制循环。Engine 本身无会话状态，可被并发调用。
type Engine struct {
	deps   EngineDeps
	config EngineConfig
	ids    *id.ULIDGenerator
}

// NewEngine 创建引擎。
func NewEngine(deps EngineDeps, config EngineConfig) (*Engine, error) {
	switch {
	case deps.Decider == nil:
		return nil, errors.New("decider is required")
	case deps.Retriever == nil:
		return nil, errors.New("retriever is required")
	case deps.Grader == nil:
		return nil, errors.New("grader is required")
	case deps.Rewriter == nil:
		return nil, errors.New("rewriter is required")
	case deps.Answerer == nil:
		return nil, errors.New("answerer is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{deps: deps, config: config, ids: id.NewULIDGenerator()}, nil
}

// Config 返回引擎配置。
func (e *Engine) Config() EngineConfig {
	return e.config
}

// RunOption 配置单次会话。
type RunOption func(*session)

// WithSessionID 指定会话 ID，默认生成 ULID。
func WithSessionID(sessionID string) RunOption {
	return func(s *session) {
		if sessionID != "" {
			s.id = sessionID
		}
	}
}

// WithObserver 注册会话观察者，记录产生时同步回调。
func WithObserver(o Observer) RunOption {
	return func(s *session) {
		s.observer = o
	}
}

// Run 执行一次会话。会话以 FAILED 结束时同时返回结果和错误，结果中保留完整轨迹。
func (e *Engine) Run(ctx context.Context, question string, opts ...RunOption) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apierrors.ErrEmptyQuestion
	}

	s := &session{
		e:        e,
		id:       e.ids.Generate(),
		original: question,
		active:   question,
		steps:    1,
		parent:   ctx,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "agent.session",
		trace.WithAttributes(attribute.String("agent.session_id", s.id)))
	defer span.End()

	var cancel context.CancelFunc
	if e.config.SessionTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, e.config.SessionTimeout, errSessionDeadline)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	s.ctx = ctx

	start := time.Now()
	e.deps.Metrics.SessionStarted()
	logger.Infow("agent session started",
		"session_id", s.id,
		"question", question,
		"max_steps", e.config.MaxSteps,
		"trace_id", tracing.TraceIDFromContext(ctx),
	)

	state := StateAwaitDecision
	for !state.IsTerminal() {
		ev, detail := s.handle(ctx, state)
		state = s.advance(state, ev, detail)
	}

	result := s.result(state, time.Since(start))
	outcome := metrics.OutcomeDone
	switch {
	case state == StateFailed:
		outcome = metrics.OutcomeFailed
	case result.Fallback:
		outcome = metrics.OutcomeFallback
	}
	e.deps.Metrics.SessionFinished(outcome, result.Steps, result.Duration)
	span.SetAttributes(
		attribute.Int("agent.steps", result.Steps),
		attribute.Bool("agent.fallback", result.Fallback),
		attribute.Bool("agent.forced", result.Forced),
	)

	if state == StateFailed {
		tracing.RecordError(ctx, s.err)
		logger.Errorw("agent session failed",
			"session_id", s.id,
			"steps", result.Steps,
			"error", s.err.Error(),
		)
		return result, s.err
	}

	tracing.SetSpanOK(ctx)
	logger.Infow("agent session finished",
		"session_id", s.id,
		"steps", result.Steps,
		"fallback", result.Fallback,
		"forced", result.Forced,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// session 保存单次会话的全部可变状态。
type session struct {
	e        *Engine
	id       string
	observer Observer

	parent context.Context
	ctx    context.Context

	original string
	active   string
	history  History
	steps    int
	forced   bool

	pendingQuery  string
	pendingCallID string
	last          *RetrievalResult

	answer      string
	fallback    bool
	err         error
	transitions []Transition
}

func (s *session) handle(ctx context.Context, state State) (Event, string) {
	switch state {
	case StateAwaitDecision:
		return s.decide(ctx)
	case StateRetrieving:
		return s.retrieve(ctx)
	case StateGrading:
		return s.grade(ctx)
	case StateRewriting:
		return s.rewrite(ctx)
	case StateAnswering:
		if s.forced {
			return s.forceAnswer(ctx)
		}
		return s.synthesize(ctx)
	}
	s.err = apierrors.ErrInternal.WithMessagef("unexpected state %s", state)
	return EventFailure, s.err.Error()
}

// advance 查表迁移，并在进入计步状态时检查步数预算。
func (s *session) advance(from State, ev Event, detail string) State {
	to, err := Next(from, ev)
	if err != nil {
		s.err = apierrors.ErrInternal.WithCause(err)
		ev, to, detail = EventFailure, StateFailed, err.Error()
	}

	if to.Counted() {
		if s.steps >= s.e.config.MaxSteps {
			if to == StateRetrieving {
				s.appendTurn(Turn{Role: llm.RoleTool, Kind: TurnError, Content: budgetNotice, ToolCallID: s.pendingCallID})
			}
			logger.Warnw("step budget exhausted, forcing an answer",
				"session_id", s.id,
				"steps", s.steps,
				"blocked", to.String(),
			)
			s.forced = true
			ev = EventBudgetExhausted
			to, _ = Next(from, ev)
			detail = fmt.Sprintf("blocked %s", from)
		} else {
			s.steps++
		}
	}

	tr := Transition{Step: s.steps, From: from, Event: ev, To: to, Detail: detail, At: time.Now()}
	s.transitions = append(s.transitions, tr)
	s.e.deps.Metrics.RecordTransition(string(from), string(ev), string(to))
	tracing.AddSpanEvent(s.ctx, "agent.transition",
		attribute.Int("agent.step", s.steps),
		attribute.String("agent.from", string(from)),
		attribute.String("agent.event", string(ev)),
		attribute.String("agent.to", string(to)),
	)
	logger.Debugw("agent transition",
		"session_id", s.id,
		"step", s.steps,
		"from", from.String(),
		"event", string(ev),
		"to", to.String(),
	)
	if s.observer != nil {
		s.observer.OnTransition(s.id, tr)
	}
	return to
}

func (s *session) appendTurn(t Turn) {
	t.Step = s.steps
	t.At = time.Now()
	s.history.Append(t)
	if s.observer != nil {
		s.observer.OnTurn(s.id, t)
	}
}

// call 执行一次外部调用：创建 span、应用单次超时并记录耗时。
func (s *session) call(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	attrs = append(attrs,
		attribute.String("agent.session_id", s.id),
		attribute.Int("agent.step", s.steps),
	)
	ctx, span := tracing.StartSpan(ctx, tracerName, "agent."+op, trace.WithAttributes(attrs...))
	defer span.End()

	if t := s.e.config.CallTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	s.e.deps.Metrics.RecordCall(op, time.Since(start), err)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	tracing.SetSpanOK(ctx)
	return nil
}

// fail 将外部错误归类为会话错误。
func (s *session) fail(err error, kind *apierrors.Errno) (Event, string) {
	switch {
	case errors.Is(context.Cause(s.ctx), errSessionDeadline):
		s.err = apierrors.ErrSessionTimeout.WithCause(err)
	case s.parent.Err() != nil:
		// 调用方取消或调用方自己的截止时间到期
		s.err = apierrors.ErrSessionCanceled.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		s.err = apierrors.ErrCallTimeout.WithCause(err)
	default:
		s.err = kind.WithCause(err)
	}
	return EventFailure, s.err.Error()
}

func (s *session) callDecide(ctx context.Context, force bool) (Decision, error) {
	in := DecisionInput{
		Question: s.active,
		History:  s.history.Turns(),
		MaxSteps: s.e.config.MaxSteps,
		Force:    force,
	}
	var d Decision
	err := s.call(ctx, "decide", func(ctx context.Context) error {
		var err error
		d, err = s.e.deps.Decider.Decide(ctx, in)
		return err
	}, attribute.Bool("agent.forced", force))
	return d, err
}

func (s *session) decide(ctx context.Context) (Event, string) {
	var d Decision
	for attempt := 0; ; attempt++ {
		var err error
		d, err = s.callDecide(ctx, false)
		if err != nil {
			return s.fail(err, apierrors.ErrGenerationFailed)
		}
		if d.Kind != DecisionInvalid {
			break
		}

		s.e.deps.Metrics.RecordParseFailure("decide")
		logger.Warnw("decision output rejected",
			"session_id", s.id,
			"attempt", attempt+1,
			"reason", d.Reason,
			"output", textutil.TruncateString(d.Raw, 200),
		)
		if attempt >= s.e.config.ParseRetries {
			// 重试用尽后消耗一步重新决策，历史保持不变。
			return EventParseFailed, fmt.Sprintf("%d attempts: %s", attempt+1, d.Reason)
		}
	}

	switch d.Kind {
	case DecisionDirectAnswer:
		s.answer = d.Answer
		s.appendTurn(Turn{Role: llm.RoleAssistant, Kind: TurnAnswer, Content: d.Answer, Thought: d.Thought})
		return EventDirectAnswer, ""

	case DecisionToolCall:
		query := d.Query
		if query == "" {
			query = s.active
		}
		s.pendingQuery = query
		s.pendingCallID = d.ToolCallID
		s.appendTurn(Turn{
			Role:        llm.RoleAssistant,
			Kind:        TurnDecision,
			Content:     strings.TrimSpace(textutil.StripThinking(d.Raw)),
			Thought:     d.Thought,
			Action:      d.Action,
			ActionInput: query,
			ToolCallID:  d.ToolCallID,
		})
		return EventToolCall, query

	default:
		s.e.deps.Metrics.RecordUnknownAction()
		logger.Warnw("unknown action", "session_id", s.id, "action", d.Action)
		s.appendTurn(Turn{
			Role:        llm.RoleAssistant,
			Kind:        TurnDecision,
			Content:     strings.TrimSpace(textutil.StripThinking(d.Raw)),
			Thought:     d.Thought,
			Action:      d.Action,
			ActionInput: d.Query,
			ToolCallID:  d.ToolCallID,
		})
		role := llm.RoleUser
		if d.ToolCallID != "" {
			role = llm.RoleTool
		}
		s.appendTurn(Turn{
			Role:       role,
			Kind:       TurnError,
			Content:    fmt.Sprintf("[错误：未知的 Action '%s']", d.Action),
			ToolCallID: d.ToolCallID,
		})
		return EventUnknownAction, d.Action
	}
}

func (s *session) retrieve(ctx context.Context) (Event, string) {
	var r *RetrievalResult
	err := s.call(ctx, "retrieve", func(ctx context.Context) error {
		var err error
		r, err = s.e.deps.Retriever.Search(ctx, s.pendingQuery, s.e.config.TopK)
		return err
	}, attribute.String("agent.query", s.pendingQuery))
	if err != nil {
		return s.fail(err, apierrors.ErrRetrievalFailed)
	}
	if r == nil {
		r = &RetrievalResult{Query: s.pendingQuery}
	}

	s.last = r
	s.e.deps.Metrics.RecordRetrieval(len(r.Snippets))
	s.appendTurn(Turn{
		Role:       llm.RoleTool,
		Kind:       TurnObservation,
		Content:    r.Observation(),
		ToolCallID: s.pendingCallID,
	})
	return EventRetrieved, fmt.Sprintf("%d snippets", len(r.Snippets))
}

func (s *session) grade(ctx context.Context) (Event, string) {
	decision := grader.NotRelevant
	if !s.last.Empty() {
		err := s.call(ctx, "grade", func(ctx context.Context) error {
			var err error
			decision, err = s.e.deps.Grader.Grade(ctx, s.active, s.last.Text())
			return err
		})
		if errors.Is(err, grader.ErrRejected) {
			s.e.deps.Metrics.RecordParseFailure("grade")
			s.err = apierrors.ErrParseFailure.WithCause(err)
			return EventFailure, err.Error()
		}
		if err != nil {
			return s.fail(err, apierrors.ErrGenerationFailed)
		}
	}

	s.e.deps.Metrics.RecordGrade(string(decision))
	s.appendTurn(Turn{Role: llm.RoleAssistant, Kind: TurnGrade, Content: string(decision)})
	if decision == grader.Relevant {
		return EventRelevant, string(decision)
	}
	return EventNotRelevant, string(decision)
}

func (s *session) rewrite(ctx context.Context) (Event, string) {
	var q string
	err := s.call(ctx, "rewrite", func(ctx context.Context) error {
		var err error
		q, err = s.e.deps.Rewriter.Rewrite(ctx, s.original)
		return err
	})
	switch {
	case errors.Is(err, rewriter.ErrEmptyRewrite):
		logger.Warnw("empty rewrite, keeping active question", "session_id", s.id, "question", s.active)
		q = s.active
	case err != nil:
		return s.fail(err, apierrors.ErrGenerationFailed)
	}

	s.active = q
	s.e.deps.Metrics.RecordRewrite()
	s.appendTurn(Turn{Role: llm.RoleAssistant, Kind: TurnRewrite, Content: q})
	return EventRewritten, q
}

func (s *session) synthesize(ctx context.Context) (Event, string) {
	var answer string
	err := s.call(ctx, "answer", func(ctx context.Context) error {
		var err error
		answer, err = s.e.deps.Answerer.Answer(ctx, s.active, s.last)
		return err
	})
	if err != nil {
		return s.fail(err, apierrors.ErrGenerationFailed)
	}
	if strings.TrimSpace(answer) == "" {
		return s.giveUp("empty answer")
	}

	s.answer = answer
	s.appendTurn(Turn{Role: llm.RoleAssistant, Kind: TurnAnswer, Content: answer})
	return EventAnswered, ""
}

// forceAnswer 只调用一次，不重试。
func (s *session) forceAnswer(ctx context.Context) (Event, string) {
	d, err := s.callDecide(ctx, true)
	if err != nil {
		return s.fail(err, apierrors.ErrGenerationFailed)
	}
	if d.Kind != DecisionDirectAnswer || strings.TrimSpace(d.Answer) == "" {
		return s.giveUp("forced decision was " + d.Kind.String())
	}

	s.answer = d.Answer
	s.appendTurn(Turn{Role: llm.RoleAssistant, Kind: TurnAnswer, Content: d.Answer, Thought: d.Thought})
	return EventAnswered, "forced"
}

func (s *session) giveUp(reason string) (Event, string) {
	logger.Warnw("no usable answer, returning fallback", "session_id", s.id, "reason", reason)
	s.answer = FallbackAnswer
	s.fallback = true
	s.appendTurn(Turn{Role: llm.RoleAssistant, Kind: TurnFallback, Content: FallbackAnswer})
	return EventFallback, reason
}

func (s *session) result(state State, d time.Duration) *Result {
	r := &Result{
		SessionID:      s.id,
		Question:       s.original,
		ActiveQuestion: s.active,
		Answer:         s.answer,
		Fallback:       s.fallback,
		Forced:         s.forced,
		State:          state,
		Steps:          s.steps,
		Turns:          s.history.Turns(),
		Transitions:    append([]Transition(nil), s.transitions...),
		Duration:       d,
	}
	if s.err != nil {
		r.Error = s.err.Error()
	}
	return r
}
