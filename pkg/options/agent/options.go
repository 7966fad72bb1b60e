// Package agent provides control loop configuration options.
package agent

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agentic-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 生成服务的传输方式。
const (
	TransportText  = "text"
	TransportTools = "tools"
)

// Options 控制循环配置。
type Options struct {
	// MaxSteps 步数上限。
	MaxSteps int `json:"max-steps" mapstructure:"max-steps"`

	// TopK 每次检索返回的片段数。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore 最低相似度，0 表示不过滤。
	MinScore float32 `json:"min-score" mapstructure:"min-score"`

	// ParseRetries 决策输出无法解析时的重试次数。
	ParseRetries int `json:"parse-retries" mapstructure:"parse-retries"`

	// GradeRetries 评分输出被拒绝时的重试次数。
	GradeRetries int `json:"grade-retries" mapstructure:"grade-retries"`

	// CallTimeout 单次外部调用超时，0 表示不限制。
	CallTimeout time.Duration `json:"call-timeout" mapstructure:"call-timeout"`

	// SessionTimeout 会话总超时，0 表示不限制。
	SessionTimeout time.Duration `json:"session-timeout" mapstructure:"session-timeout"`

	// Transport 决策传输方式（text 或 tools）。
	Transport string `json:"transport" mapstructure:"transport"`

	// ToolName 检索工具名称。
	ToolName string `json:"tool-name" mapstructure:"tool-name"`

	// 各阶段采样温度
	DecisionTemperature float64 `json:"decision-temperature" mapstructure:"decision-temperature"`
	AnswerTemperature   float64 `json:"answer-temperature" mapstructure:"answer-temperature"`
	RewriteTemperature  float64 `json:"rewrite-temperature" mapstructure:"rewrite-temperature"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		MaxSteps:            5,
		TopK:                3,
		ParseRetries:        2,
		GradeRetries:        2,
		Transport:           TransportText,
		ToolName:            "retrieve",
		DecisionTemperature: 0.1,
		AnswerTemperature:   0.7,
		RewriteTemperature:  0.7,
	}
}

// AddFlags adds flags for agent options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.MaxSteps, p+"agent.max-steps", o.MaxSteps, "Maximum number of counted steps per session.")
	fs.IntVar(&o.TopK, p+"agent.top-k", o.TopK, "Number of snippets per retrieval.")
	fs.Float32Var(&o.MinScore, p+"agent.min-score", o.MinScore, "Minimum similarity score of a snippet (0 disables).")
	fs.IntVar(&o.ParseRetries, p+"agent.parse-retries", o.ParseRetries, "Retries when a decision cannot be parsed.")
	fs.IntVar(&o.GradeRetries, p+"agent.grade-retries", o.GradeRetries, "Retries when a grade response is rejected.")
	fs.DurationVar(&o.CallTimeout, p+"agent.call-timeout", o.CallTimeout, "Timeout of a single external call (0 disables).")
	fs.DurationVar(&o.SessionTimeout, p+"agent.session-timeout", o.SessionTimeout, "Timeout of a whole session (0 disables).")
	fs.StringVar(&o.Transport, p+"agent.transport", o.Transport, "Decision transport (text, tools).")
	fs.StringVar(&o.ToolName, p+"agent.tool-name", o.ToolName, "Name of the retrieval tool.")
	fs.Float64Var(&o.DecisionTemperature, p+"agent.decision-temperature", o.DecisionTemperature, "Sampling temperature of decision calls.")
	fs.Float64Var(&o.AnswerTemperature, p+"agent.answer-temperature", o.AnswerTemperature, "Sampling temperature of answer synthesis.")
	fs.Float64Var(&o.RewriteTemperature, p+"agent.rewrite-temperature", o.RewriteTemperature, "Sampling temperature of query rewriting.")
}

// Validate validates the agent options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("agent.max-steps must be at least 1"))
	}
	if o.TopK < 1 {
		errs = append(errs, fmt.Errorf("agent.top-k must be at least 1"))
	}
	if o.ParseRetries < 0 || o.GradeRetries < 0 {
		errs = append(errs, fmt.Errorf("agent retries must not be negative"))
	}
	if o.CallTimeout < 0 || o.SessionTimeout < 0 {
		errs = append(errs, fmt.Errorf("agent timeouts must not be negative"))
	}
	switch o.Transport {
	case TransportText, TransportTools:
	default:
		errs = append(errs, fmt.Errorf("agent.transport must be %q or %q, got %q", TransportText, TransportTools, o.Transport))
	}
	if o.ToolName == "" {
		errs = append(errs, fmt.Errorf("agent.tool-name is required"))
	}
	return errs
}

// Complete completes the agent options with defaults.
func (o *Options) Complete() error {
	if o.Transport == "" {
		o.Transport = TransportText
	}
	if o.ToolName == "" {
		o.ToolName = "retrieve"
	}
	return nil
}
