package biz

import (
	"context"
	"sync"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/grader"
	"github.com/kart-io/agentic-rag/pkg/llm"
)

// scriptedDecider 依次返回预设的决策，脚本耗尽后重复最后一个。
type scriptedDecider struct {
	mu        sync.Mutex
	decisions []Decision
	err       error
	inputs    []DecisionInput
}

func (d *scriptedDecider) Decide(_ context.Context, in DecisionInput) (Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs = append(d.inputs, in)
	if d.err != nil {
		return Decision{}, d.err
	}
	out := d.decisions[0]
	if len(d.decisions) > 1 {
		d.decisions = d.decisions[1:]
	}
	return out, nil
}

func (d *scriptedDecider) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inputs)
}

// blockingDecider 阻塞直到 ctx 结束。
type blockingDecider struct{}

func (blockingDecider) Decide(ctx context.Context, _ DecisionInput) (Decision, error) {
	<-ctx.Done()
	return Decision{}, ctx.Err()
}

type fakeRetriever struct {
	mu      sync.Mutex
	corpus  map[string][]Snippet
	err     error
	queries []string
}

func (r *fakeRetriever) Search(_ context.Context, query string, _ int) (*RetrievalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	return &RetrievalResult{Query: query, Snippets: r.corpus[query]}, nil
}

type fakeGrader struct {
	mu       sync.Mutex
	decision grader.Decision
	err      error
	calls    int

	lastContent string
}

func (g *fakeGrader) Grade(_ context.Context, _ string, content string) (grader.Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastContent = content
	return g.decision, g.err
}

type fakeRewriter struct {
	mu        sync.Mutex
	out       string
	err       error
	originals []string
}

func (r *fakeRewriter) Rewrite(_ context.Context, original string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.originals = append(r.originals, original)
	return r.out, r.err
}

type fakeAnswerer struct {
	answer string
	err    error
	calls  int
}

func (a *fakeAnswerer) Answer(context.Context, string, *RetrievalResult) (string, error) {
	a.calls++
	return a.answer, a.err
}

// scriptedChat 依次返回预设的模型输出。
type scriptedChat struct {
	mu       sync.Mutex
	outputs  []*llm.ChatResponse
	err      error
	requests []*llm.ChatRequest
}

func newScriptedChat(outputs ...string) *scriptedChat {
	c := &scriptedChat{}
	for _, o := range outputs {
		c.outputs = append(c.outputs, &llm.ChatResponse{Content: o})
	}
	return c
}

func (c *scriptedChat) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	out := c.outputs[0]
	if len(c.outputs) > 1 {
		c.outputs = c.outputs[1:]
	}
	return out, nil
}

func (c *scriptedChat) Name() string { return "scripted" }

func toolCall(query string) Decision {
	return Decision{Kind: DecisionToolCall, Thought: "需要检索", Action: DefaultToolName, Query: query}
}

func directAnswer(answer string) Decision {
	return Decision{Kind: DecisionDirectAnswer, Thought: "可以回答", Answer: answer}
}

func invalid() Decision {
	return Decision{Kind: DecisionInvalid, Reason: "missing Thought", Raw: "随便说点什么"}
}

var stoneEgg = []Snippet{
	{
		Text:   "那座山正当顶上，有一块仙石……一日迸裂，产一石卵，似圆球样大。",
		Source: "xiyouji.txt 第1页",
	},
	{
		Text:   "因见风，化作一个石猴，五官俱备，四肢皆全。",
		Source: "xiyouji.txt 第2页",
	},
}
