package app

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/agentic-rag/internal/rag"
	"github.com/kart-io/agentic-rag/pkg/app/cliflag"
)

// 输出格式。
const (
	OutputText = "text"
	OutputJSON = "json"
)

// AskOptions contains the options of the ask command.
type AskOptions struct {
	*ragsvc.Options `mapstructure:",squash"`

	// File 问题文件，每行一个问题。
	File string `json:"file" mapstructure:"file"`
	// Concurrency 批量提问时的并发会话数。
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
	// Output 输出格式（text 或 json）。
	Output string `json:"output" mapstructure:"output"`
}

// NewAskOptions creates AskOptions with default values.
// Logs go to stderr so that answers on stdout stay clean.
func NewAskOptions() *AskOptions {
	opts := ragsvc.NewOptions()
	opts.LogOptions.Level = "WARN"
	opts.LogOptions.OutputPaths = []string{"stderr"}
	return &AskOptions{
		Options:     opts,
		Concurrency: 4,
		Output:      OutputText,
	}
}

// Flags returns the flags grouped by section.
func (o *AskOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("ask")
	fs.StringVarP(&o.File, "file", "f", o.File, "Read questions from a file, one per line.")
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Number of sessions run at the same time for several questions.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format (text, json).")

	o.Options.AddFlags(&fss)
	return fss
}

// Complete completes all the required options.
func (o *AskOptions) Complete() error {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o.Options.Complete()
}

// Validate checks whether the options are valid.
func (o *AskOptions) Validate() error {
	errs := o.Options.Validate()
	switch o.Output {
	case OutputText, OutputJSON:
	default:
		errs = append(errs, fmt.Errorf("output must be %q or %q, got %q", OutputText, OutputJSON, o.Output))
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on AskOptions.
func (o *AskOptions) Config() *ragsvc.Config {
	cfg := &ragsvc.Config{}
	o.Options.ApplyTo(cfg)
	return cfg
}
