package resilience

import (
	"context"

	"github.com/kart-io/newslens/pkg/llm"
)

// EmbeddingProvider 带重试和熔断的 Embedding Provider 包装器。
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// WrapEmbedding 创建带韧性功能的 Embedding Provider。
func WrapEmbedding(p llm.EmbeddingProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *EmbeddingProvider {
	return &EmbeddingProvider{
		provider: p,
		retry:    retry,
		cb:       NewCircuitBreaker(p.Name()+"-embed", cb),
	}
}

// Embed 为多个文本生成向量嵌入（带重试和熔断）。
func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return Retry(ctx, r.retry, func() ([][]float32, error) {
		var out [][]float32
		err := r.cb.Execute(func() error {
			var err error
			out, err = r.provider.Embed(ctx, texts)
			return err
		})
		return out, err
	})
}

// EmbedSingle 为单个文本生成向量嵌入（带重试和熔断）。
func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Name 返回供应商名称。
func (r *EmbeddingProvider) Name() string { return r.provider.Name() }

// Breaker 获取熔断器实例（用于监控）。
func (r *EmbeddingProvider) Breaker() *CircuitBreaker { return r.cb }

// ChatProvider 带重试和熔断的 Chat Provider 包装器。
type ChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// WrapChat 创建带韧性功能的 Chat Provider。
func WrapChat(p llm.ChatProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *ChatProvider {
	return &ChatProvider{
		provider: p,
		retry:    retry,
		cb:       NewCircuitBreaker(p.Name()+"-chat", cb),
	}
}

// Chat 进行多轮对话（带重试和熔断）。
func (r *ChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return Retry(ctx, r.retry, func() (string, error) {
		var out string
		err := r.cb.Execute(func() error {
			var err error
			out, err = r.provider.Chat(ctx, messages)
			return err
		})
		return out, err
	})
}

// Generate 根据提示生成文本（带重试和熔断）。
func (r *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return Retry(ctx, r.retry, func() (string, error) {
		var out string
		err := r.cb.Execute(func() error {
			var err error
			out, err = r.provider.Generate(ctx, prompt, systemPrompt)
			return err
		})
		return out, err
	})
}

// Name 返回供应商名称。
func (r *ChatProvider) Name() string { return r.provider.Name() }

// Breaker 获取熔断器实例（用于监控）。
func (r *ChatProvider) Breaker() *CircuitBreaker { return r.cb }

var (
	_ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ChatProvider)(nil)
)
