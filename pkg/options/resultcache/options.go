// Package resultcache configures the short-lived cache for generated results.
package resultcache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/newslens/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 生成结果缓存配置。
type Options struct {
	// TrendingTTL 热点分析结果的缓存时间。
	TrendingTTL time.Duration `json:"trending-ttl" mapstructure:"trending-ttl"`

	// EmbeddingTTL 向量缓存时间（仅 redis 可用时生效）。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		TrendingTTL:  5 * time.Minute,
		EmbeddingTTL: 7 * 24 * time.Hour,
		KeyPrefix:    "newslens:",
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.DurationVar(&o.TrendingTTL, p+"trending-ttl", o.TrendingTTL, "How long a trending analysis is reused.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "How long cached embeddings live in redis.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Cache key prefix.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	var errs []error
	if o.TrendingTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.trending-ttl must not be negative"))
	}
	if o.KeyPrefix == "" {
		errs = append(errs, fmt.Errorf("cache.key-prefix is required"))
	}
	return errs
}
