package biz

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/newslens/internal/newslens/feed"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/internal/pkg/news/textutil"
	"github.com/kart-io/newslens/pkg/llm"
)

const testDim = 64

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := store.New(context.Background(), db)
	require.NoError(t, err)
	return s
}

// fakeEmbedder hashes tokens into a bag-of-words vector so texts sharing
// words are close in cosine space.
type fakeEmbedder struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, fmt.Errorf("embedding service down")
	}
	return bagOfWords(text), nil
}

func bagOfWords(text string) []float32 {
	v := make([]float32, testDim)
	for _, tok := range textutil.Tokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%testDim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// fakeChat answers Generate with respond and counts calls.
type fakeChat struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
	}
	return f.Generate(ctx, sb.String(), "")
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return "generated text", nil
	}
	return respond(prompt)
}

func (f *fakeChat) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeChat) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// feedMap serves canned feeds by URL.
type feedMap struct {
	mu    sync.Mutex
	feeds map[string]*feed.Feed
	errs  map[string]error
}

func newFeedMap() *feedMap {
	return &feedMap{feeds: map[string]*feed.Feed{}, errs: map[string]error{}}
}

func (m *feedMap) set(url string, fd *feed.Feed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fd.FeedURL = url
	m.feeds[url] = fd
}

func (m *feedMap) fail(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
}

func (m *feedMap) Fetch(_ context.Context, url string) (*feed.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	fd, ok := m.feeds[url]
	if !ok {
		return nil, fmt.Errorf("no feed at %s", url)
	}
	return fd, nil
}

// env wires the core against in-memory backends.
type env struct {
	store    *store.Store
	index    *store.MemoryIndex
	embedder *fakeEmbedder
	chat     *fakeChat
	feeds    *feedMap
	metrics  *metrics.Metrics
	indexer  *Indexer
	ingestor *Ingestor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    newTestStore(t),
		index:    store.NewMemoryIndex(testDim),
		embedder: &fakeEmbedder{},
		chat:     &fakeChat{},
		feeds:    newFeedMap(),
		metrics:  metrics.New(),
	}
	e.indexer = NewIndexer(e.store.Articles, e.index, e.embedder, IndexerConfig{EmbedWindow: 2000}, e.metrics)
	e.ingestor = NewIngestor(e.store, e.feeds, e.indexer, NewNormalizer(50), nil, e.metrics)
	return e
}

func longBody(topic string) string {
	return strings.Repeat(topic+" coverage continues with more reporting. ", 4)
}
