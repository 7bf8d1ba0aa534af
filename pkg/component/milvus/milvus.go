// Package milvus wraps the Milvus v2 SDK for the article vector collection.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/newslens/pkg/component/storage"
	milvusopts "github.com/kart-io/newslens/pkg/options/milvus"
)

// Field names of the article collection.
const (
	FieldArticleID     = "article_id"
	FieldEmbedding     = "embedding"
	FieldSourceName    = "source_name"
	FieldPublishedUnix = "published_unix"
	FieldSnippet       = "snippet"

	sourceNameMaxLen = 512
	snippetMaxLen    = 2048
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

var _ storage.Client = (*Client)(nil)

// New connects to Milvus.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "milvus"
}

// Ping checks the connection by probing the configured collection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(c.opts.Collection))
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Close(ctx)
}

// Health returns a HealthChecker function.
func (c *Client) Health() storage.HealthChecker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.Ping(ctx)
	}
}

// EnsureCollection creates and loads the article collection when missing.
// Vectors are compared by cosine similarity; the primary key is the article
// id assigned by the relational store.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("newslens article embeddings").
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(FieldArticleID).
				WithDataType(entity.FieldTypeInt64).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim))).
			WithField(entity.NewField().
				WithName(FieldSourceName).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(sourceNameMaxLen)).
			WithField(entity.NewField().
				WithName(FieldPublishedUnix).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().
				WithName(FieldSnippet).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(snippetMaxLen))

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewIvfFlatIndex(entity.COSINE, 128)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Row is one article vector with its filterable metadata.
type Row struct {
	ArticleID     int64
	Embedding     []float32
	SourceName    string
	PublishedUnix int64
	Snippet       string
}

// Upsert writes rows keyed by article id, replacing existing vectors.
func (c *Client) Upsert(ctx context.Context, collection string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	dim := len(rows[0].Embedding)
	ids := make([]int64, len(rows))
	vectors := make([][]float32, len(rows))
	sources := make([]string, len(rows))
	published := make([]int64, len(rows))
	snippets := make([]string, len(rows))
	for i, r := range rows {
		if len(r.Embedding) != dim {
			return fmt.Errorf("row %d: embedding dimension %d, want %d", i, len(r.Embedding), dim)
		}
		ids[i] = r.ArticleID
		vectors[i] = r.Embedding
		sources[i] = truncate(r.SourceName, sourceNameMaxLen)
		published[i] = r.PublishedUnix
		snippets[i] = truncate(r.Snippet, snippetMaxLen)
	}

	_, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnInt64(FieldArticleID, ids),
		column.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		column.NewColumnVarChar(FieldSourceName, sources),
		column.NewColumnInt64(FieldPublishedUnix, published),
		column.NewColumnVarChar(FieldSnippet, snippets),
	))
	if err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Hit is a single search result.
type Hit struct {
	ArticleID     int64
	Score         float32
	SourceName    string
	PublishedUnix int64
}

// Search returns up to topK nearest articles. filter is a Milvus boolean
// expression and may be empty.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, filter string) ([]Hit, error) {
	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(FieldSourceName, FieldPublishedUnix)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{Score: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnInt64); ok {
			hit.ArticleID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				if col.Name() == FieldSourceName {
					hit.SourceName = col.Data()[i]
				}
			case *column.ColumnInt64:
				if col.Name() == FieldPublishedUnix {
					hit.PublishedUnix = col.Data()[i]
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Delete removes vectors by article id.
func (c *Client) Delete(ctx context.Context, collection string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithInt64IDs(FieldArticleID, ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// Count returns the number of entities in a collection.
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// PublishedRangeFilter builds a filter on published_unix. Zero bounds are
// open.
func PublishedRangeFilter(from, to time.Time) string {
	switch {
	case !from.IsZero() && !to.IsZero():
		return fmt.Sprintf("%s >= %d && %s <= %d", FieldPublishedUnix, from.Unix(), FieldPublishedUnix, to.Unix())
	case !from.IsZero():
		return fmt.Sprintf("%s >= %d", FieldPublishedUnix, from.Unix())
	case !to.IsZero():
		return fmt.Sprintf("%s <= %d", FieldPublishedUnix, to.Unix())
	default:
		return ""
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
