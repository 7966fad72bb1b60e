package ragsvc

import (
	"fmt"

	"github.com/kart-io/agentic-rag/pkg/app/cliflag"
	"github.com/kart-io/agentic-rag/pkg/infra/tracing"
	agentopts "github.com/kart-io/agentic-rag/pkg/options/agent"
	cacheopts "github.com/kart-io/agentic-rag/pkg/options/cache"
	llmopts "github.com/kart-io/agentic-rag/pkg/options/llm"
	logopts "github.com/kart-io/agentic-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/agentic-rag/pkg/options/milvus"
	storeopts "github.com/kart-io/agentic-rag/pkg/options/store"
	weaviateopts "github.com/kart-io/agentic-rag/pkg/options/weaviate"
)

// Options 是服务端与命令行工具共用的配置：日志、追踪、向量库、模型、控制循环与缓存。
type Options struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	TracingOptions   *tracing.Options         `json:"tracing" mapstructure:"tracing"`
	StoreOptions     *storeopts.Options       `json:"store" mapstructure:"store"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	WeaviateOptions  *weaviateopts.Options    `json:"weaviate" mapstructure:"weaviate"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	AgentOptions     *agentopts.Options       `json:"agent" mapstructure:"agent"`
	CacheOptions     *cacheopts.Options       `json:"cache" mapstructure:"cache"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	tracingOpts := tracing.NewOptions()
	tracingOpts.ServiceName = Name

	return &Options{
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingOpts,
		StoreOptions:     storeopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		WeaviateOptions:  weaviateopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		AgentOptions:     agentopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
	}
}

// AddFlags adds the flags of every section to fss.
func (o *Options) AddFlags(fss *cliflag.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.WeaviateOptions.AddFlags(fss.FlagSet("weaviate"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.AgentOptions.AddFlags(fss.FlagSet("agent"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
}

// Complete completes all the required options.
func (o *Options) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.AgentOptions.Complete(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate collects the validation errors of every section.
// Only the selected vector store backend is validated.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	if err := o.TracingOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.StoreOptions.Validate()...)
	switch o.StoreOptions.Backend {
	case storeopts.BackendWeaviate:
		errs = append(errs, o.WeaviateOptions.Validate()...)
	default:
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.AgentOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	return errs
}

// ApplyTo copies the options into cfg.
func (o *Options) ApplyTo(cfg *Config) {
	cfg.Log = o.LogOptions
	cfg.Tracing = o.TracingOptions
	cfg.Store = o.StoreOptions
	cfg.Milvus = o.MilvusOptions
	cfg.Weaviate = o.WeaviateOptions
	cfg.Embedding = o.EmbeddingOptions
	cfg.Chat = o.ChatOptions
	cfg.Agent = o.AgentOptions
	cfg.Cache = o.CacheOptions
}
