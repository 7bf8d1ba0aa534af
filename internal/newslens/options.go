package app

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kart-io/newslens/pkg/options"
	llmopts "github.com/kart-io/newslens/pkg/options/llm"
	logopts "github.com/kart-io/newslens/pkg/options/logger"
	milvusopts "github.com/kart-io/newslens/pkg/options/milvus"
	newsopts "github.com/kart-io/newslens/pkg/options/news"
	redisopts "github.com/kart-io/newslens/pkg/options/redis"
	cacheopts "github.com/kart-io/newslens/pkg/options/resultcache"
	storeopts "github.com/kart-io/newslens/pkg/options/store"
	tracingopts "github.com/kart-io/newslens/pkg/options/tracing"
)

// Options contains all newslens options.
type Options struct {
	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Store selects the relational record store.
	Store *storeopts.Options `json:"store" mapstructure:"store"`

	// Redis backs the embedding and result caches when enabled.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// Milvus contains Milvus configuration, used when news.vector-backend is milvus.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains generation provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// News contains the ingestion, search and analysis tunables.
	News *newsopts.Options `json:"news" mapstructure:"news"`

	// Cache contains result cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// Tracing contains OpenTelemetry configuration.
	Tracing *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// MetricsAddr serve 模式下暴露 /metrics 的地址，为空时不启动。
	MetricsAddr string `json:"metrics-addr" mapstructure:"metrics-addr"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	tracing := tracingopts.NewOptions()
	tracing.ServiceName = appName

	return &Options{
		Log:       logopts.NewOptions(),
		Store:     storeopts.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		News:      newsopts.NewOptions(),
		Cache:     cacheopts.NewOptions(),
		Tracing:   tracing,
	}
}

// Flags returns flags grouped by section.
func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.Log.AddFlags(fss.FlagSet("log"))
	o.Store.AddFlags(fss.FlagSet("store"))
	o.Redis.AddFlags(fss.FlagSet("redis"))
	o.Milvus.AddFlags(fss.FlagSet("milvus"))
	o.Embedding.AddFlags(fss.FlagSet("embedding"))
	o.Chat.AddFlags(fss.FlagSet("chat"))
	o.News.AddFlags(fss.FlagSet("news"))
	o.Cache.AddFlags(fss.FlagSet("cache"))
	o.Tracing.AddFlags(fss.FlagSet("tracing"))

	fs := fss.FlagSet("misc")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", o.MetricsAddr, "Address serving Prometheus metrics in serve mode, e.g. :9090. Empty disables it.")

	return fss
}

// Complete completes all the required options.
func (o *Options) Complete() error {
	return options.CompleteAll(map[string]options.Completer{
		"embedding": o.Embedding,
		"chat":      o.Chat,
		"redis":     o.Redis,
		"tracing":   o.Tracing,
	}, "embedding", "chat", "redis", "tracing")
}

// Validate checks whether the options are valid.
func (o *Options) Validate() error {
	errs := []error{}

	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Store.Validate()...)
	errs = append(errs, o.Redis.Validate()...)
	if o.News.VectorBackend == newsopts.VectorMilvus {
		errs = append(errs, o.Milvus.Validate()...)
	}
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.News.Validate()...)
	errs = append(errs, o.Cache.Validate()...)
	errs = append(errs, o.Tracing.Validate()...)

	return utilerrors.NewAggregate(errs)
}
