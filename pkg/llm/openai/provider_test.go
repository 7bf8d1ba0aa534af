package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/pkg/llm"
)

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := llm.NewProvider(ProviderName, &llm.Config{})
	assert.Error(t, err)
}

func TestEmbed_ReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(&llm.Config{BaseURL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestEmbed_MissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	p, _ := NewProvider(&llm.Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "missing vector for input 1")
}

func TestGenerate_SendsSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"role":"system"`)
		assert.Contains(t, string(body), `"content":"summarize"`)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	p, _ := NewProvider(&llm.Config{BaseURL: srv.URL, APIKey: "k"})
	out, err := p.Generate(context.Background(), "summarize", "you are an editor")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, _ := NewProvider(&llm.Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}
