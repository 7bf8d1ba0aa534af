// Package enhancer 提供语义检索结果的 AI 增强。
//
// 增强是尽力而为的：
//   - Query Rewriting（查询重写）: 失败时返回原始查询
//   - Reranking（重排序）: 由生成服务对候选结果打分并给出解释，失败时返回错误，
//     调用方应退回未增强的排序
package enhancer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/newslens/internal/pkg/news/textutil"
	"github.com/kart-io/newslens/pkg/llm"
	"github.com/kart-io/newslens/pkg/utils/json"
)

// Config 增强器配置。
type Config struct {
	// EnableQueryRewrite 是否在向量化前重写查询。
	EnableQueryRewrite bool `json:"enable-query-rewrite" mapstructure:"enable-query-rewrite"`

	// MaxCandidates 送入重排序的候选数量，其余候选保持原顺序排在后面。
	MaxCandidates int `json:"max-candidates" mapstructure:"max-candidates"`

	// ExcerptChars 每个候选摘录的最大字符数。
	ExcerptChars int `json:"excerpt-chars" mapstructure:"excerpt-chars"`

	// RelevanceWeight 生成服务评分在最终分数中的权重，范围 [0,1]。
	RelevanceWeight float64 `json:"relevance-weight" mapstructure:"relevance-weight"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		EnableQueryRewrite: false,
		MaxCandidates:      10,
		ExcerptChars:       300,
		RelevanceWeight:    0.7,
	}
}

// Candidate 待重排序的检索结果。
type Candidate struct {
	ID      uint64
	Title   string
	Source  string
	Excerpt string
	// Score 原始相似度，范围 [0,1]。
	Score float64
}

// Judgement 重排序后的单条结果。
type Judgement struct {
	ID          uint64
	Score       float64
	Explanation string
}

// Enhancer 提供检索增强功能。
type Enhancer struct {
	chat   llm.ChatProvider
	config Config
}

// New 创建新的增强器。
func New(chat llm.ChatProvider, config Config) *Enhancer {
	d := DefaultConfig()
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = d.MaxCandidates
	}
	if config.ExcerptChars <= 0 {
		config.ExcerptChars = d.ExcerptChars
	}
	if config.RelevanceWeight <= 0 || config.RelevanceWeight > 1 {
		config.RelevanceWeight = d.RelevanceWeight
	}
	return &Enhancer{chat: chat, config: config}
}

// RewriteQuery 使用生成服务扩展查询，失败或未启用时返回原始查询。
func (e *Enhancer) RewriteQuery(ctx context.Context, query string) string {
	if !e.config.EnableQueryRewrite {
		return query
	}

	prompt := fmt.Sprintf(`Rewrite the following news search query so it works better for semantic retrieval.
Keep the original intent, expand key terms with close synonyms, and output only the rewritten query.

Query: %s

Rewritten query:`, query)

	response, err := e.chat.Generate(ctx, prompt, "")
	if err != nil {
		logger.Warnw("查询重写失败，使用原始查询", "error", err.Error())
		return query
	}
	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(response), `"`))
	if rewritten == "" {
		return query
	}
	logger.Debugw("查询已重写", "original", query, "rewritten", rewritten)
	return rewritten
}

type rerankResponse struct {
	Results []struct {
		ID          uint64  `json:"id"`
		Relevance   float64 `json:"relevance"`
		Explanation string  `json:"explanation"`
	} `json:"results"`
}

// Rerank 对候选结果重排序，返回与 candidates 等长的结果。
// 生成服务失败或返回无法解析的内容时返回错误。
func (e *Enhancer) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Judgement, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	head := candidates
	if len(head) > e.config.MaxCandidates {
		head = head[:e.config.MaxCandidates]
	}

	response, err := e.chat.Generate(ctx, e.rerankPrompt(query, head), rerankSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("rerank generation: %w", err)
	}

	parsed, err := parseRerank(response)
	if err != nil {
		return nil, err
	}

	known := make(map[uint64]int, len(head))
	for i, c := range head {
		known[c.ID] = i
	}
	judged := make(map[uint64]int, len(parsed.Results))
	for i, r := range parsed.Results {
		if _, ok := known[r.ID]; ok {
			if _, dup := judged[r.ID]; !dup {
				judged[r.ID] = i
			}
		}
	}
	if len(judged) == 0 {
		return nil, fmt.Errorf("rerank response references no candidate")
	}

	w := e.config.RelevanceWeight
	out := make([]Judgement, 0, len(candidates))
	for _, c := range head {
		j := Judgement{ID: c.ID, Score: c.Score}
		if idx, ok := judged[c.ID]; ok {
			r := parsed.Results[idx]
			j.Score = (1-w)*c.Score + w*textutil.Clamp(r.Relevance, 0, 1)
			j.Explanation = strings.TrimSpace(r.Explanation)
		}
		out = append(out, j)
	}
	sort.SliceStable(out, func(i, k int) bool {
		return out[i].Score > out[k].Score
	})

	for _, c := range candidates[len(head):] {
		out = append(out, Judgement{ID: c.ID, Score: c.Score})
	}

	logger.Debugw("重排序完成", "candidates", len(candidates), "judged", len(judged))
	return out, nil
}

const rerankSystemPrompt = "You are a news search assistant. Answer with JSON only."

func (e *Enhancer) rerankPrompt(query string, candidates []Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nCandidate articles:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "\n[id=%d] %s (%s)\n%s\n", c.ID, c.Title, c.Source, textutil.Truncate(c.Excerpt, e.config.ExcerptChars))
	}
	sb.WriteString(`
Rate how relevant each article is to the query, considering context the query implies.
Return a JSON object of the form:
{"results": [{"id": <article id>, "relevance": <0.0-1.0>, "explanation": "<one sentence on why it matches>"}]}
List the most relevant article first.`)
	return sb.String()
}

func parseRerank(response string) (*rerankResponse, error) {
	raw, ok := json.ExtractObject(response)
	if !ok {
		return nil, fmt.Errorf("rerank response contains no JSON object")
	}
	var parsed rerankResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return &parsed, nil
}
