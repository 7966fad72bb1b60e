// Package weaviateopts provides options for Weaviate client configuration.
package weaviateopts

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/agentic-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Weaviate client configuration.
type Options struct {
	// Host is the Weaviate address, with or without scheme.
	Host string `json:"host" mapstructure:"host"`

	// Scheme is http or https, ignored when Host carries a scheme.
	Scheme string `json:"scheme" mapstructure:"scheme"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"-" mapstructure:"api-key"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Host:   "localhost:8080",
		Scheme: "http",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Host, options.Join(prefixes...)+"weaviate.host", o.Host, "Weaviate server address.")
	fs.StringVar(&o.Scheme, options.Join(prefixes...)+"weaviate.scheme", o.Scheme, "Weaviate scheme (http, https).")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"weaviate.api-key", o.APIKey, "Weaviate API key.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("weaviate host is required"))
	}
	if o.Scheme != "http" && o.Scheme != "https" {
		errs = append(errs, fmt.Errorf("weaviate scheme must be http or https"))
	}
	return errs
}
