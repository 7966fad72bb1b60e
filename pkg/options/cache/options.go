// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agentic-rag/pkg/options"
	redisopts "github.com/kart-io/agentic-rag/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// 缓存后端。
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options 检索缓存配置。
type Options struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Backend 缓存后端（redis 或 memory）。
	Backend string `json:"backend" mapstructure:"backend"`

	// MaxEntries memory 后端的最大条数，0 表示不限。
	MaxEntries int `json:"max-entries" mapstructure:"max-entries"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:    true,
		Backend:    BackendRedis,
		MaxEntries: 10000,
		TTL:        1 * time.Hour,
		KeyPrefix:  "agentic-rag:retrieval:",
		Redis:      redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"cache.enabled", o.Enabled, "Enable cache.")
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"cache.backend", o.Backend, "Cache backend (redis, memory).")
	fs.IntVar(&o.MaxEntries, options.Join(prefixes...)+"cache.max-entries", o.MaxEntries, "Maximum entries kept by the memory backend, 0 for no limit.")
	fs.DurationVar(&o.TTL, options.Join(prefixes...)+"cache.ttl", o.TTL, "Cache TTL duration.")
	fs.StringVar(&o.KeyPrefix, options.Join(prefixes...)+"cache.key-prefix", o.KeyPrefix, "Cache key prefix.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Enabled && o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive"))
	}
	if !o.Enabled {
		return errs
	}
	switch o.Backend {
	case BackendRedis:
		if o.Redis != nil {
			errs = append(errs, o.Redis.Validate()...)
		}
	case BackendMemory:
		if o.MaxEntries < 0 {
			errs = append(errs, fmt.Errorf("cache max-entries must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache backend %q", o.Backend))
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Backend == "" {
		o.Backend = BackendRedis
	}
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
