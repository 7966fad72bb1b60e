// Package store provides vector store selection options.
package store

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/agentic-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 支持的向量库。
const (
	BackendMilvus   = "milvus"
	BackendWeaviate = "weaviate"
)

// Options 向量库选择配置。
type Options struct {
	// Backend 向量库类型。
	Backend string `json:"backend" mapstructure:"backend"`

	// Collection 集合名称，Weaviate 下为类名。
	Collection string `json:"collection" mapstructure:"collection"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Backend:    BackendMilvus,
		Collection: "xiyouji_collection",
	}
}

// AddFlags adds flags for store options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Backend, p+"store.backend", o.Backend, "Vector store backend (milvus, weaviate).")
	fs.StringVar(&o.Collection, p+"store.collection", o.Collection, "Collection searched by the retriever.")
}

// Validate validates the store options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendMilvus, BackendWeaviate:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendMilvus, BackendWeaviate, o.Backend))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("store.collection is required"))
	}
	return errs
}
