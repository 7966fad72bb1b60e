// Package react parses and renders the ReAct text protocol used by the
// decision step: a Thought followed by either an Action with its input or a
// final Answer.
//
//	Thought: 需要查找孙悟空的出生
//	Action: retrieve
//	Action Input: 孙悟空 出生
//
// Parsing is pure and stateless.
package react

import (
	"regexp"
	"strings"
)

// Marker strings of the protocol.
const (
	MarkerThought     = "Thought:"
	MarkerAction      = "Action:"
	MarkerActionInput = "Action Input:"
	MarkerAnswer      = "Answer:"
)

// Kind tags the variant of a parsed step.
type Kind int

const (
	// KindInvalid means no Thought marker was found.
	KindInvalid Kind = iota
	// KindAction is a call to the expected tool.
	KindAction
	// KindUnknownAction names an action other than the expected tool, or none.
	KindUnknownAction
	// KindAnswer is a final answer.
	KindAnswer
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindUnknownAction:
		return "unknown_action"
	case KindAnswer:
		return "answer"
	default:
		return "invalid"
	}
}

// Step is the parsed form of one model output.
type Step struct {
	Kind        Kind
	Thought     string
	Action      string
	ActionInput string
	Answer      string
}

// 全角冒号也被接受，模型在中文语境下经常输出它。
const colon = `[:：]`

var (
	thoughtRe = regexp.MustCompile(`Thought` + colon + `[ \t]*`)
	// Thought 在下一个行首标记处结束。
	thoughtEndRe = regexp.MustCompile(`\n[ \t]*(?:Action Input|Action|Answer)` + colon)
	// 其余标记同样只在行首识别。
	answerRe = regexp.MustCompile(`(?ms)^[ \t]*Answer` + colon + `\s*(.+)`)
	actionRe = regexp.MustCompile(`(?m)^[ \t]*Action` + colon + `[ \t]*([\w-]+)`)
	// Action Input 只取到行尾。
	actionInputRe = regexp.MustCompile(`(?m)^[ \t]*Action Input` + colon + `[ \t]*([^\n]*)`)
)

// Parse parses text against the protocol. tool is the identifier of the only
// valid action. An Answer marker takes priority over an Action.
func Parse(text, tool string) Step {
	loc := thoughtRe.FindStringIndex(text)
	if loc == nil {
		return Step{Kind: KindInvalid}
	}

	rest := text[loc[1]:]
	if end := thoughtEndRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	thought := strings.TrimSpace(rest)
	if thought == "" {
		return Step{Kind: KindInvalid}
	}

	step := Step{Thought: thought}

	if m := answerRe.FindStringSubmatch(text); m != nil {
		if answer := strings.TrimSpace(m[1]); answer != "" {
			step.Kind = KindAnswer
			step.Answer = answer
			return step
		}
	}

	if m := actionRe.FindStringSubmatch(text); m != nil {
		step.Action = m[1]
	}
	if m := actionInputRe.FindStringSubmatch(text); m != nil {
		step.ActionInput = strings.TrimSpace(m[1])
	}

	if step.Action == tool {
		step.Kind = KindAction
	} else {
		step.Kind = KindUnknownAction
	}
	return step
}

// Format renders a step back into protocol text. Parse(Format(s), tool)
// reproduces s for any step whose fields are trimmed and whose ActionInput
// is a single line.
func Format(s Step) string {
	var b strings.Builder
	b.WriteString(MarkerThought)
	b.WriteString(" ")
	b.WriteString(s.Thought)

	switch s.Kind {
	case KindAnswer:
		b.WriteString("\n" + MarkerAnswer + " ")
		b.WriteString(s.Answer)
	case KindAction, KindUnknownAction:
		if s.Action != "" {
			b.WriteString("\n" + MarkerAction + " ")
			b.WriteString(s.Action)
		}
		b.WriteString("\n" + MarkerActionInput + " ")
		b.WriteString(s.ActionInput)
	}
	return b.String()
}
