package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/pkg/news/textutil"
)

const (
	summarySystemPrompt  = "You are a news editor. Write accurate, neutral summaries using only facts from the article."
	analysisSystemPrompt = "You are a media analyst comparing how different outlets cover the same story. Answer with JSON only."
	compareSystemPrompt  = "You are a media analyst comparing two news articles."
	trendingSystemPrompt = "You are a news analyst identifying trends across recent coverage."
)

// 每种摘要的长度与结构要求
var summaryInstructions = map[model.SummaryVariant]string{
	model.SummaryBrief: `Write a brief summary of 100-150 words:
- one short paragraph stating what happened
- then 2-3 bullet points with the key facts
Do not add analysis or opinion.`,
	model.SummaryComprehensive: `Write a comprehensive summary of 250-400 words covering:
- the main points of the story
- the background needed to understand it
- why it matters`,
	model.SummaryAnalytical: `Write an analytical summary of 300-500 words with these sections:
Executive summary, Analysis, Outlook, Open questions.`,
}

func summaryPrompt(v model.SummaryVariant, a *model.Article) string {
	var sb strings.Builder
	sb.WriteString(summaryInstructions[v])
	fmt.Fprintf(&sb, "\n\nTitle: %s\nSource: %s\n", a.Title, a.SourceName)
	if a.Author != "" {
		fmt.Fprintf(&sb, "Author: %s\n", a.Author)
	}
	fmt.Fprintf(&sb, "Published: %s\n\nArticle:\n%s\n", a.PublishedAt.Format("2006-01-02"), a.Body)
	return sb.String()
}

func analysisPrompt(articles []*model.Article, focus string, bodyChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Compare how the following %d articles cover %s.\n", len(articles), focus)
	for i, a := range articles {
		fmt.Fprintf(&sb, "\n--- Article %d [id=%d] ---\nSource: %s\nTitle: %s\n%s\n",
			i+1, a.ID, a.SourceName, a.Title, textutil.Truncate(a.Body, bodyChars))
	}
	sb.WriteString(`
Return a JSON object with exactly these keys:
{
  "common_themes": ["<theme shared by most sources>"],
  "unique_perspectives": [{"source": "<source>", "article_id": <id>, "perspective": "<what only this source emphasizes>"}],
  "bias_indicators": [{"source": "<source>", "indicators": ["<loaded wording, omission, framing>"], "assessment": "<short assessment>"}],
  "coverage_gaps": ["<fact or angle no source covers well>"]
}`)
	return sb.String()
}

func comparePrompt(a, b *model.Article, bodyChars int) string {
	var sb strings.Builder
	sb.WriteString("Compare these two articles.\n")
	for i, x := range []*model.Article{a, b} {
		fmt.Fprintf(&sb, "\nArticle %d (%s): %s\n%s\n", i+1, x.SourceName, x.Title, textutil.Truncate(x.Body, bodyChars))
	}
	sb.WriteString(`
Describe the facts both agree on, where they differ in emphasis or framing, and what each one leaves out.`)
	return sb.String()
}

func trendingPrompt(articles []*model.Article, hoursBack, excerptChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "These are the most notable articles published in the last %d hours.\n", hoursBack)
	for i, a := range articles {
		fmt.Fprintf(&sb, "\n%d. %s (%s)\n%s\n", i+1, a.Title, a.SourceName, textutil.Snippet(a.Body, excerptChars))
	}
	sb.WriteString(`
Identify the dominant topics and themes, explain how the stories connect, and note any emerging developments worth following.`)
	return sb.String()
}
