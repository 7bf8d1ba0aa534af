package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/pkg/llm"
)

func TestRegistered(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), ProviderName)
}

func TestEmbedAndGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
		case "/api/chat":
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"trend"},"done":true}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := llm.NewProvider(ProviderName, &llm.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	vec, err := p.EmbedSingle(context.Background(), "headline")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	out, err := p.Generate(context.Background(), "what is trending", "")
	require.NoError(t, err)
	assert.Equal(t, "trend", out)

	assert.NoError(t, p.(*Provider).Ping(context.Background()))
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	p, _ := NewProvider(&llm.Config{BaseURL: srv.URL})
	_, err := p.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}
