package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/react"
	"github.com/kart-io/agentic-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/agentic-rag/pkg/llm"
	"github.com/kart-io/agentic-rag/pkg/utils/json"
)

// DecisionInput 是一次决策调用的输入。
type DecisionInput struct {
	// Question 当前活动问题。
	Question string
	// History 当前会话历史。
	History []Turn
	// MaxSteps 步数上限，用于提示词。
	MaxSteps int
	// Force 为 true 时要求模型立即给出答案。
	Force bool
}

// Decider 调用生成服务决定下一步动作。
// 返回 error 仅表示服务失败；无法解析的输出用 DecisionInvalid 表示。
type Decider interface {
	Decide(ctx context.Context, in DecisionInput) (Decision, error)
}

const (
	// TransportText 使用 ReAct 文本协议。
	TransportText = "text"
	// TransportTools 使用原生工具调用。
	TransportTools = "tools"
)

// DefaultToolName 是检索工具的默认名称。
const DefaultToolName = "retrieve"

const reactPrompt = `你是一个使用 ReAct (Reasoning and Acting) 方法的西游记问答助手。

你需要通过以下循环来回答问题：
Thought（思考）→ Action（行动）→ Observation（观察）→ ... → Answer（最终答案）

**可用的工具：**
- %[1]s: 从西游记原文中检索相关信息。输入应该是搜索查询。

**输出格式要求：**
每一步必须严格按照以下格式之一输出：

1. 需要检索时：
Thought: [你的推理过程，解释为什么需要检索以及检索什么]
Action: %[1]s
Action Input: [具体的搜索查询]

2. 得出最终答案时：
Thought: [你的推理过程，说明为什么可以给出答案了]
Answer: [最终答案，简洁明了，最多三句话]

**重要规则：**
- 每次只能输出一个 Thought，然后是一个 Action 或 Answer
- 如果选择 Action，必须等待 Observation 结果
- 收到 Observation 后，继续下一个 Thought
- 最多进行 %[2]d 次 Action，之后必须给出 Answer
- Answer 必须基于 Observation 的内容，如果信息不足就说不知道

**问题：** %[3]s

%[4]s

开始！`

const forceInstruction = "\n你必须现在给出最终答案（使用 Answer: 格式）"

// TextDecider 通过 ReAct 文本协议做决策。
type TextDecider struct {
	chat        llm.ChatProvider
	tool        string
	temperature *float64
}

// NewTextDecider 创建文本协议决策器。
func NewTextDecider(chat llm.ChatProvider, tool string, temperature *float64) *TextDecider {
	if tool == "" {
		tool = DefaultToolName
	}
	return &TextDecider{chat: chat, tool: tool, temperature: temperature}
}

// Decide implements Decider.
func (d *TextDecider) Decide(ctx context.Context, in DecisionInput) (Decision, error) {
	history := RenderHistory(in.History)
	if in.Force {
		history += forceInstruction
	}
	prompt := fmt.Sprintf(reactPrompt, d.tool, in.MaxSteps, in.Question, history)

	out, err := llm.Generate(ctx, d.chat, prompt, "", d.temperature)
	if err != nil {
		return Decision{}, err
	}
	return decisionFromStep(react.Parse(textutil.StripThinking(out), d.tool), out), nil
}

func decisionFromStep(step react.Step, raw string) Decision {
	d := Decision{Thought: step.Thought, Raw: raw}
	switch step.Kind {
	case react.KindAnswer:
		d.Kind = DecisionDirectAnswer
		d.Answer = step.Answer
	case react.KindAction:
		d.Kind = DecisionToolCall
		d.Action = step.Action
		d.Query = step.ActionInput
	case react.KindUnknownAction:
		d.Kind = DecisionUnknownAction
		d.Action = step.Action
		d.Query = step.ActionInput
	default:
		d.Kind = DecisionInvalid
		d.Reason = "missing Thought"
	}
	return d
}

// RenderHistory 将历史渲染为 ReAct 文本。评分与改写记录不进入提示词。
func RenderHistory(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Kind {
		case TurnDecision:
			b.WriteString("\n")
			b.WriteString(react.Format(react.Step{
				Kind:        react.KindAction,
				Thought:     t.Thought,
				Action:      t.Action,
				ActionInput: t.ActionInput,
			}))
			b.WriteString("\n")
		case TurnObservation:
			b.WriteString("Observation: ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		case TurnError:
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

const toolSystemPrompt = `你是一个专业的西游记知识助手。你可以使用 %s 工具从西游记原文中检索相关内容。
请基于检索到的内容回答用户问题，如果检索不到相关内容，请告诉用户你不知道。
回答要准确、简洁。最多调用 %d 次工具。`

const forceToolInstruction = "你必须现在给出最终答案，不要再调用工具。"

// ToolDecider 通过原生工具调用做决策。
type ToolDecider struct {
	chat        llm.ChatProvider
	tool        llm.Tool
	temperature *float64
}

// NewToolDecider 创建工具调用决策器。
func NewToolDecider(chat llm.ChatProvider, tool string, temperature *float64) *ToolDecider {
	if tool == "" {
		tool = DefaultToolName
	}
	return &ToolDecider{chat: chat, tool: RetrievalTool(tool), temperature: temperature}
}

// RetrievalTool 返回检索工具描述。
func RetrievalTool(name string) llm.Tool {
	return llm.Tool{
		Name:        name,
		Description: "从西游记原文中检索相关信息。",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "具体的搜索查询",
				},
			},
			"required": []string{"query"},
		},
	}
}

type toolArgs struct {
	Query *string `json:"query"`
}

// Decide implements Decider.
func (d *ToolDecider) Decide(ctx context.Context, in DecisionInput) (Decision, error) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(toolSystemPrompt, d.tool.Name, in.MaxSteps)},
		{Role: llm.RoleUser, Content: in.Question},
	}
	msgs = append(msgs, historyMessages(in.History, d.tool.Name)...)
	if in.Force {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: forceToolInstruction})
	}

	resp, err := d.chat.Chat(ctx, &llm.ChatRequest{
		Messages:    msgs,
		Tools:       []llm.Tool{d.tool},
		Temperature: d.temperature,
	})
	if err != nil {
		return Decision{}, err
	}

	content := strings.TrimSpace(textutil.StripThinking(resp.Content))
	if len(resp.ToolCalls) == 0 {
		if content == "" {
			return Decision{Kind: DecisionInvalid, Reason: "empty response", Raw: resp.Content}, nil
		}
		return Decision{Kind: DecisionDirectAnswer, Answer: content, Raw: resp.Content}, nil
	}

	call := resp.ToolCalls[0]
	dec := Decision{Thought: content, Action: call.Name, ToolCallID: call.ID, Raw: call.Arguments}
	if call.Name != d.tool.Name {
		dec.Kind = DecisionUnknownAction
		return dec, nil
	}

	var args toolArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || args.Query == nil {
		dec.Kind = DecisionInvalid
		dec.Reason = fmt.Sprintf("bad tool arguments %q", textutil.TruncateString(call.Arguments, 80))
		return dec, nil
	}
	dec.Kind = DecisionToolCall
	dec.Query = strings.TrimSpace(*args.Query)
	return dec, nil
}

// historyMessages 将历史转换为工具调用消息序列。
func historyMessages(turns []Turn, tool string) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Kind {
		case TurnDecision:
			args, _ := json.Marshal(map[string]string{"query": t.ActionInput})
			name := t.Action
			if name == "" {
				name = tool
			}
			msgs = append(msgs, llm.Message{
				Role:    llm.RoleAssistant,
				Content: t.Thought,
				ToolCalls: []llm.ToolCall{
					{ID: t.ToolCallID, Name: name, Arguments: string(args)},
				},
			})
		case TurnObservation, TurnError:
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: t.Content, ToolCallID: t.ToolCallID})
		}
	}
	return msgs
}

// NewDecider 按传输方式创建决策器。
func NewDecider(transport string, chat llm.ChatProvider, tool string, temperature *float64) (Decider, error) {
	switch transport {
	case TransportText, "":
		return NewTextDecider(chat, tool, temperature), nil
	case TransportTools:
		return NewToolDecider(chat, tool, temperature), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", transport)
	}
}
