package app

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/agentic-rag/internal/rag/biz"
	"github.com/kart-io/agentic-rag/pkg/utils/json"
)

// fallbackMarker 标记兜底回复。
const fallbackMarker = "[FALLBACK]"

// maxObservationRunes 文本输出中观察结果的最大字符数。
const maxObservationRunes = 200

// printer 串行化多个会话的输出。
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// formatTurn 将一条历史记录渲染为一行文本。
func formatTurn(t biz.Turn) string {
	switch t.Kind {
	case biz.TurnDecision:
		return fmt.Sprintf("[%d] Thought: %s\n    Action: %s(%q)", t.Step, oneLine(t.Thought), t.Action, t.ActionInput)
	case biz.TurnObservation:
		return fmt.Sprintf("[%d] Observation: %s", t.Step, oneLine(textutil.TruncateString(t.Content, maxObservationRunes)))
	case biz.TurnGrade:
		return fmt.Sprintf("[%d] Grade: %s", t.Step, t.Content)
	case biz.TurnRewrite:
		return fmt.Sprintf("[%d] Rewrite: %s", t.Step, t.Content)
	case biz.TurnError:
		return fmt.Sprintf("[%d] Error: %s", t.Step, oneLine(t.Content))
	case biz.TurnAnswer:
		return fmt.Sprintf("[%d] Answer: %s", t.Step, t.Content)
	case biz.TurnFallback:
		return fmt.Sprintf("[%d] %s %s", t.Step, fallbackMarker, t.Content)
	default:
		return fmt.Sprintf("[%d] %s: %s", t.Step, t.Kind, oneLine(t.Content))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// turn 立即输出一条记录，用于单个问题的实时轨迹。
func (p *printer) turn(t biz.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, formatTurn(t))
}

// summary 输出会话结论。
func (p *printer) summary(res *biz.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeSummary(res, err)
}

func (p *printer) writeSummary(res *biz.Result, err error) {
	if res == nil {
		fmt.Fprintf(p.out, "Error: %v\n", err)
		return
	}
	switch {
	case err != nil:
		fmt.Fprintf(p.out, "FAILED after %d steps: %v\n", res.Steps, err)
	case res.Fallback:
		fmt.Fprintf(p.out, "%s %s\n", fallbackMarker, res.Answer)
	default:
		fmt.Fprintf(p.out, "%s\n", res.Answer)
	}
	fmt.Fprintf(p.out, "(session %s, %d steps, %s)\n", res.SessionID, res.Steps, res.Duration.Round(1e6))
}

// trace 一次性输出问题、完整轨迹与结论，用于批量提问。
func (p *printer) trace(question string, res *biz.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "=== %s\n", question)
	if res != nil {
		for _, t := range res.Turns {
			fmt.Fprintln(p.out, formatTurn(t))
		}
	}
	p.writeSummary(res, err)
	fmt.Fprintln(p.out)
}

// askOutput 是 JSON 输出中的一条记录。
type askOutput struct {
	Question string      `json:"question"`
	Result   *biz.Result `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// json 输出全部结果。
func (p *printer) json(items []askOutput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, string(b))
	return err
}
