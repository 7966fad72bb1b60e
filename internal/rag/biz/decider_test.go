package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agentic-rag/pkg/llm"
)

func TestTextDecider_ToolCall(t *testing.T) {
	chat := newScriptedChat("<think>想一想</think>Thought: 需要检索\nAction: retrieve\nAction Input: 孙悟空 出生")
	d := NewTextDecider(chat, "", nil)

	dec, err := d.Decide(context.Background(), DecisionInput{Question: birthQuestion, MaxSteps: 5})
	require.NoError(t, err)
	assert.Equal(t, DecisionToolCall, dec.Kind)
	assert.Equal(t, "孙悟空 出生", dec.Query)
	assert.Equal(t, "需要检索", dec.Thought)

	require.Len(t, chat.requests, 1)
	prompt := chat.requests[0].Messages[0].Content
	assert.Contains(t, prompt, birthQuestion)
	assert.Contains(t, prompt, "最多进行 5 次 Action")
	assert.NotContains(t, prompt, forceInstruction)
}

func TestTextDecider_Variants(t *testing.T) {
	tests := []struct {
		name   string
		output string
		kind   DecisionKind
	}{
		{"answer", "Thought: 已经知道\nAnswer: 花果山", DecisionDirectAnswer},
		{"unknown action", "Thought: 搜索\nAction: search\nAction Input: x", DecisionUnknownAction},
		{"missing thought", "Answer: 花果山", DecisionInvalid},
		{"plain text", "孙悟空出生在花果山。", DecisionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewTextDecider(newScriptedChat(tt.output), "", nil).Decide(context.Background(), DecisionInput{Question: "q"})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, dec.Kind)
			assert.Equal(t, tt.output, dec.Raw)
		})
	}
}

func TestTextDecider_ForceAndHistory(t *testing.T) {
	chat := newScriptedChat("Thought: 够了\nAnswer: 石卵")
	history := []Turn{
		{Kind: TurnDecision, Thought: "需要检索", Action: "retrieve", ActionInput: "孙悟空 出生"},
		{Kind: TurnObservation, Content: NoResultObservation},
		{Kind: TurnGrade, Content: "not-relevant"},
		{Kind: TurnRewrite, Content: "孙悟空 出生地"},
	}

	_, err := NewTextDecider(chat, "", nil).Decide(context.Background(), DecisionInput{
		Question: "q", History: history, MaxSteps: 5, Force: true,
	})
	require.NoError(t, err)

	prompt := chat.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Action Input: 孙悟空 出生")
	assert.Contains(t, prompt, "Observation: "+NoResultObservation)
	assert.NotContains(t, prompt, "not-relevant")
	assert.Contains(t, prompt, forceInstruction)
}

func TestTextDecider_ServiceError(t *testing.T) {
	chat := &scriptedChat{err: errors.New("boom")}
	_, err := NewTextDecider(chat, "", nil).Decide(context.Background(), DecisionInput{Question: "q"})
	assert.Error(t, err)
}

func TestRenderHistory_RoundTrip(t *testing.T) {
	out := RenderHistory([]Turn{{Kind: TurnDecision, Thought: "查一下", Action: "retrieve", ActionInput: "石猴"}})
	assert.Equal(t, "\nThought: 查一下\nAction: retrieve\nAction Input: 石猴\n", out)
}

func toolResponse(content string, calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{Content: content, ToolCalls: calls}
}

func TestToolDecider_Variants(t *testing.T) {
	tests := []struct {
		name  string
		resp  *llm.ChatResponse
		kind  DecisionKind
		query string
	}{
		{"tool call", toolResponse("", llm.ToolCall{ID: "c1", Name: "retrieve", Arguments: `{"query":" 石卵 "}`}), DecisionToolCall, "石卵"},
		{"empty query", toolResponse("", llm.ToolCall{ID: "c1", Name: "retrieve", Arguments: `{"query":""}`}), DecisionToolCall, ""},
		{"direct answer", toolResponse("花果山。"), DecisionDirectAnswer, ""},
		{"empty", toolResponse("<think>...</think>  "), DecisionInvalid, ""},
		{"unknown tool", toolResponse("", llm.ToolCall{ID: "c1", Name: "web_search", Arguments: `{}`}), DecisionUnknownAction, ""},
		{"bad arguments", toolResponse("", llm.ToolCall{ID: "c1", Name: "retrieve", Arguments: `{"q":1`}), DecisionInvalid, ""},
		{"missing query", toolResponse("", llm.ToolCall{ID: "c1", Name: "retrieve", Arguments: `{}`}), DecisionInvalid, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &scriptedChat{outputs: []*llm.ChatResponse{tt.resp}}
			dec, err := NewToolDecider(chat, "", nil).Decide(context.Background(), DecisionInput{Question: "q", MaxSteps: 5})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, dec.Kind)
			assert.Equal(t, tt.query, dec.Query)
		})
	}
}

func TestToolDecider_Messages(t *testing.T) {
	chat := &scriptedChat{outputs: []*llm.ChatResponse{toolResponse("花果山。")}}
	history := []Turn{
		{Kind: TurnDecision, Action: "retrieve", ActionInput: "石猴", ToolCallID: "c1"},
		{Kind: TurnObservation, Content: NoResultObservation, ToolCallID: "c1"},
		{Kind: TurnGrade, Content: "not-relevant"},
	}

	_, err := NewToolDecider(chat, "", nil).Decide(context.Background(), DecisionInput{
		Question: birthQuestion, History: history, MaxSteps: 5, Force: true,
	})
	require.NoError(t, err)

	req := chat.requests[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, DefaultToolName, req.Tools[0].Name)

	msgs := req.Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, birthQuestion, msgs[1].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.JSONEq(t, `{"query":"石猴"}`, msgs[2].ToolCalls[0].Arguments)
	assert.Equal(t, llm.RoleTool, msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, forceToolInstruction, msgs[4].Content)
}

func TestNewDecider(t *testing.T) {
	chat := newScriptedChat("x")

	d, err := NewDecider(TransportText, chat, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &TextDecider{}, d)

	d, err = NewDecider(TransportTools, chat, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &ToolDecider{}, d)

	_, err = NewDecider("grpc", chat, "", nil)
	assert.Error(t, err)
}
