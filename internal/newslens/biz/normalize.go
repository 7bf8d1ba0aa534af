package biz

import (
	"fmt"
	"html"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/feed"
	"github.com/kart-io/newslens/internal/pkg/news/textutil"
)

// Skip reasons reported for entries that do not become articles.
const (
	SkipMissingTitle = "missing_title"
	SkipMissingLink  = "missing_link"
	SkipInvalidLink  = "invalid_link"
	SkipShortContent = "content_too_short"
)

// 追踪参数在计算 canonical URL 时被移除
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "dclid": true, "msclkid": true,
	"mc_cid": true, "mc_eid": true, "_ga": true, "yclid": true,
}

const blockSelector = "p,br,div,li,h1,h2,h3,h4,h5,h6,blockquote,tr,section,article"

// Normalizer turns raw feed entries into article candidates.
type Normalizer struct {
	MinContentLength int
	now              func() time.Time
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(minContentLength int) *Normalizer {
	return &Normalizer{MinContentLength: minContentLength, now: time.Now}
}

// Candidate is a normalized entry ready for dedup and scoring.
type Candidate struct {
	Article *model.Article
	// HasDate 条目自带发布时间或更新时间。
	HasDate bool
}

// Normalize cleans e. It returns a skip reason when the entry cannot become
// an article.
func (n *Normalizer) Normalize(fd *feed.Feed, e *feed.Entry) (*Candidate, string) {
	title := CleanHTML(e.Title)
	if title == "" {
		return nil, SkipMissingTitle
	}
	link := strings.TrimSpace(e.Link)
	if link == "" {
		return nil, SkipMissingLink
	}

	base := fd.Link
	if base == "" {
		base = fd.FeedURL
	}
	abs, err := ResolveURL(base, link)
	if err != nil {
		return nil, SkipInvalidLink
	}
	canonical, err := CanonicalURL(abs)
	if err != nil {
		return nil, SkipInvalidLink
	}

	body := CleanHTML(e.Content)
	if body == "" {
		body = CleanHTML(e.Description)
	}
	if utf8.RuneCountInString(body) < n.MinContentLength {
		return nil, SkipShortContent
	}

	now := n.now().UTC()
	published, hasDate := now, false
	switch {
	case e.Published != nil && !e.Published.IsZero():
		published, hasDate = e.Published.UTC(), true
	case e.Updated != nil && !e.Updated.IsZero():
		published, hasDate = e.Updated.UTC(), true
	}

	return &Candidate{
		Article: &model.Article{
			Title:        title,
			Body:         body,
			CanonicalURL: canonical,
			SourceName:   SourceName(fd),
			Author:       CleanHTML(e.Author),
			PublishedAt:  published,
			IngestedAt:   now,
		},
		HasDate: hasDate,
	}, ""
}

// SourceName returns the feed title, or the host of the feed URL.
func SourceName(fd *feed.Feed) string {
	if name := CleanHTML(fd.Title); name != "" {
		return name
	}
	for _, raw := range []string{fd.FeedURL, fd.Link} {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	return ""
}

// CleanHTML strips markup and collapses whitespace. Block elements become
// line breaks.
func CleanHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<>") {
		return collapseLines(html.UnescapeString(s))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseLines(html.UnescapeString(s))
	}
	doc.Find("script,style,noscript,iframe,svg").Remove()
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return collapseLines(doc.Text())
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = textutil.CollapseSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// ResolveURL resolves link against base. The result must be an absolute
// http(s) URL.
func ResolveURL(base, link string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", err
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return "", fmt.Errorf("cannot resolve relative link %q", link)
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", ref.Scheme)
	}
	if ref.Host == "" {
		return "", fmt.Errorf("link %q has no host", link)
	}
	return ref.String(), nil
}

// CanonicalURL normalizes an absolute URL into the dedup key: lower-case
// scheme and host, no default port, no fragment, no tracking parameters,
// sorted query and no trailing slash.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)

	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	u.RawPath = ""
	return u.String(), nil
}

func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		vs := append([]string(nil), q[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}
