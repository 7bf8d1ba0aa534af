// Package feed fetches RSS/Atom feeds and exposes their entries in a
// format-independent shape.
package feed

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/utils/httpclient"
)

// Entry is a raw feed entry. Body fields may contain markup.
type Entry struct {
	Title       string
	Link        string
	Content     string
	Description string
	Author      string
	Published   *time.Time
	Updated     *time.Time
}

// Feed is one fetched feed document.
type Feed struct {
	Title string
	// Link 站点地址，用于解析条目中的相对链接。
	Link    string
	FeedURL string
	Entries []*Entry
}

// Fetcher retrieves a feed. A failure is reported once per feed, never per
// entry.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*Feed, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, feedURL string) (*Feed, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, feedURL string) (*Feed, error) {
	return f(ctx, feedURL)
}

// HTTPFetcher downloads feeds over HTTP and parses them with gofeed.
type HTTPFetcher struct {
	client *httpclient.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. Each call makes a single attempt; failed
// sources are retried on the next ingestion run.
func NewHTTPFetcher(timeout time.Duration, userAgent string, opts ...httpclient.Option) *HTTPFetcher {
	opts = append([]httpclient.Option{httpclient.WithUserAgent(userAgent)}, opts...)
	return &HTTPFetcher{
		client: httpclient.NewClient(timeout, 0, opts...),
	}
}

// Fetch downloads and parses feedURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) (*Feed, error) {
	header := http.Header{}
	header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	data, err := f.client.Get(ctx, feedURL, header)
	if err != nil {
		return nil, errors.ErrFetchFailed.WithCause(err)
	}
	return Parse(data, feedURL)
}

// Parse parses an RSS, Atom or JSON feed document. gofeed parsers keep
// state, so every call uses its own.
func Parse(data []byte, feedURL string) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.ErrFetchFailed.WithMessagef("parse feed %s", feedURL).WithCause(err)
	}
	return convert(parsed, feedURL), nil
}

func convert(in *gofeed.Feed, feedURL string) *Feed {
	out := &Feed{
		Title:   strings.TrimSpace(in.Title),
		Link:    in.Link,
		FeedURL: feedURL,
		Entries: make([]*Entry, 0, len(in.Items)),
	}
	for _, item := range in.Items {
		if item == nil {
			continue
		}
		e := &Entry{
			Title:       item.Title,
			Link:        item.Link,
			Content:     item.Content,
			Description: item.Description,
			Published:   item.PublishedParsed,
			Updated:     item.UpdatedParsed,
		}
		if e.Link == "" && len(item.Links) > 0 {
			e.Link = item.Links[0]
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			e.Author = item.Authors[0].Name
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}
