package react

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tool = "retrieve"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Step
	}{
		{
			name: "action",
			in:   "Thought: 需要查找孙悟空的出生\nAction: retrieve\nAction Input: 孙悟空 出生",
			want: Step{Kind: KindAction, Thought: "需要查找孙悟空的出生", Action: "retrieve", ActionInput: "孙悟空 出生"},
		},
		{
			name: "answer",
			in:   "Thought: 已找到\nAnswer: 从石头中孕育的石卵里迸出",
			want: Step{Kind: KindAnswer, Thought: "已找到", Answer: "从石头中孕育的石卵里迸出"},
		},
		{
			name: "action input stops at newline",
			in:   "Thought: 查一下\nAction: retrieve\nAction Input: 孙悟空 出生\nObservation: 伪造的观察",
			want: Step{Kind: KindAction, Thought: "查一下", Action: "retrieve", ActionInput: "孙悟空 出生"},
		},
		{
			name: "multiline thought",
			in:   "Thought: 第一行\n第二行\nAction: retrieve\nAction Input: q",
			want: Step{Kind: KindAction, Thought: "第一行\n第二行", Action: "retrieve", ActionInput: "q"},
		},
		{
			name: "multiline answer spans to end",
			in:   "Thought: ok\nAnswer: 第一段\n\n第二段",
			want: Step{Kind: KindAnswer, Thought: "ok", Answer: "第一段\n\n第二段"},
		},
		{
			name: "answer wins over action",
			in:   "Thought: x\nAction: retrieve\nAction Input: q\nAnswer: 直接回答",
			want: Step{Kind: KindAnswer, Thought: "x", Answer: "直接回答"},
		},
		{
			name: "answer marker inside thought line",
			in:   "Thought: I cannot give the Answer: yet, need facts\nAction: retrieve\nAction Input: 孙悟空 出生",
			want: Step{Kind: KindAction, Thought: "I cannot give the Answer: yet, need facts", Action: "retrieve", ActionInput: "孙悟空 出生"},
		},
		{
			name: "action marker inside thought line",
			in:   "Thought: 不用 Action: retrieve 了\nAnswer: 花果山",
			want: Step{Kind: KindAnswer, Thought: "不用 Action: retrieve 了", Answer: "花果山"},
		},
		{
			name: "indented markers",
			in:   "Thought: 查\n  Action: retrieve\n  Action Input: 花果山",
			want: Step{Kind: KindAction, Thought: "查", Action: "retrieve", ActionInput: "花果山"},
		},
		{
			name: "full-width colon",
			in:   "Thought：需要检索\nAction：retrieve\nAction Input：花果山",
			want: Step{Kind: KindAction, Thought: "需要检索", Action: "retrieve", ActionInput: "花果山"},
		},
		{
			name: "unknown action",
			in:   "Thought: 用搜索引擎\nAction: web_search\nAction Input: 孙悟空",
			want: Step{Kind: KindUnknownAction, Thought: "用搜索引擎", Action: "web_search", ActionInput: "孙悟空"},
		},
		{
			name: "thought only",
			in:   "Thought: 我还在想",
			want: Step{Kind: KindUnknownAction, Thought: "我还在想"},
		},
		{
			name: "empty action input",
			in:   "Thought: 查\nAction: retrieve\nAction Input:",
			want: Step{Kind: KindAction, Thought: "查", Action: "retrieve"},
		},
		{
			name: "empty answer falls through",
			in:   "Thought: 想\nAnswer:   ",
			want: Step{Kind: KindUnknownAction, Thought: "想"},
		},
		{
			name: "no thought",
			in:   "Action: retrieve\nAction Input: q",
			want: Step{Kind: KindInvalid},
		},
		{
			name: "empty thought",
			in:   "Thought:\nAction: retrieve\nAction Input: q",
			want: Step{Kind: KindInvalid},
		},
		{
			name: "free text",
			in:   "孙悟空是从石头里蹦出来的。",
			want: Step{Kind: KindInvalid},
		},
		{
			name: "empty",
			in:   "",
			want: Step{Kind: KindInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in, tool))
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	steps := []Step{
		{Kind: KindAction, Thought: "需要查找孙悟空的出生", Action: "retrieve", ActionInput: "孙悟空 出生"},
		{Kind: KindAnswer, Thought: "已找到", Answer: "从石头中孕育的石卵里迸出"},
		{Kind: KindAnswer, Thought: "多行\n思考", Answer: "多行\n答案"},
		{Kind: KindUnknownAction, Thought: "换个工具", Action: "calculator", ActionInput: "1+1"},
	}

	for _, s := range steps {
		t.Run(s.Kind.String(), func(t *testing.T) {
			assert.Equal(t, s, Parse(Format(s), tool))
		})
	}
}

func TestRoundTripExamples(t *testing.T) {
	inputs := []string{
		"Thought: 需要查找孙悟空的出生\nAction: retrieve\nAction Input: 孙悟空 出生",
		"Thought: 已找到\nAnswer: 从石头中孕育的石卵里迸出",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Format(Parse(in, tool)))
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid", KindInvalid.String())
	assert.Equal(t, "action", KindAction.String())
	assert.Equal(t, "unknown_action", KindUnknownAction.String())
	assert.Equal(t, "answer", KindAnswer.String())
}
