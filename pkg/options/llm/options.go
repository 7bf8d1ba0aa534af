// Package llm provides model provider configuration options.
package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/newslens/pkg/llm"
	"github.com/kart-io/newslens/pkg/llm/resilience"
	"github.com/kart-io/newslens/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义一个模型供应商（embedding 或 chat）的配置。
type ProviderOptions struct {
	// role 为 flag 前缀，embedding 或 chat
	role string

	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，也可通过 NEWSLENS_<ROLE>_API_KEY 环境变量提供。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 失败后的最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Temperature 生成温度（仅 chat）。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数（仅 chat）。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// BreakerFailures 连续失败多少次后熔断，0 表示使用默认值。
	BreakerFailures int `json:"breaker-failures" mapstructure:"breaker-failures"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		role:       "embedding",
		Provider:   "ollama",
		Model:      "nomic-embed-text",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		role:        "chat",
		Provider:    "ollama",
		Model:       "qwen2.5:7b",
		Timeout:     120 * time.Second,
		MaxRetries:  1,
		Temperature: 0.3,
	}
}

// Role returns the flag prefix of these options.
func (o *ProviderOptions) Role() string { return o.role }

// AddFlags adds flags for provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, o.role)...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, fmt.Sprintf("Provider for %s (%s).", o.role, strings.Join(llm.ListProviders(), ", ")))
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, fmt.Sprintf("Provider API key (prefer NEWSLENS_%s_API_KEY).", strings.ToUpper(o.role)))
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of retries.")
	fs.IntVar(&o.BreakerFailures, p+"breaker-failures", o.BreakerFailures, "Consecutive failures before the circuit breaker opens.")
	if o.role == "chat" {
		fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
		fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum generated tokens, 0 for provider default.")
	}
}

// Complete fills the api key from the environment.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("NEWSLENS_" + strings.ToUpper(o.role) + "_API_KEY")
	}
	return nil
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", o.role))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.role))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for openai provider", o.role))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.role))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s.max-retries must not be negative", o.role))
	}
	return errs
}

// Config converts the options into a provider config. Retries are handled by
// the resilience wrapper, so the transport itself does a single attempt.
func (o *ProviderOptions) Config() *llm.Config {
	cfg := &llm.Config{
		BaseURL:     o.BaseURL,
		APIKey:      o.APIKey,
		Timeout:     o.Timeout,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	if o.role == "embedding" {
		cfg.EmbedModel = o.Model
	} else {
		cfg.ChatModel = o.Model
	}
	return cfg
}

// RetryConfig returns the retry policy for the resilience wrapper.
func (o *ProviderOptions) RetryConfig() *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = o.MaxRetries + 1
	return rc
}

// BreakerConfig returns the circuit breaker policy.
func (o *ProviderOptions) BreakerConfig() *resilience.CircuitBreakerConfig {
	bc := resilience.DefaultCircuitBreakerConfig()
	if o.BreakerFailures > 0 {
		bc.MaxFailures = o.BreakerFailures
	}
	return bc
}
