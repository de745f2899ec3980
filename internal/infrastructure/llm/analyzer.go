package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/ports"
)

const analyzerPrompt = `You are a cross-border e-commerce trend analyst.
Given a trending %s post, identify one concrete product that could be sold because of it.
Respond with a single JSON object and no other text:
{"productName": "", "reason": "", "targetAudience": "", "sellingPoint": "",
 "chineseKeyword": "", "englishKeyword": "", "searchTags": [""], "estimatedPrice": ""}
If no sellable product is implied, return {"productName": ""}.`

// Analyzer extracts a product idea from a post via the chat API.
type Analyzer struct {
	chat completer
}

var _ ports.ContentAnalyzer = (*Analyzer)(nil)

// NewAnalyzer wraps a chat client.
func NewAnalyzer(chat completer) *Analyzer {
	return &Analyzer{chat: chat}
}

// Analyze returns a transport error, a ParseFailure for malformed replies, or the analysis.
func (a *Analyzer) Analyze(ctx context.Context, item domain.CandidateItem, platform domain.Platform) (domain.AnalysisResult, error) {
	reply, err := a.chat.Complete(ctx, []Message{
		{Role: "system", Content: fmt.Sprintf(analyzerPrompt, platform)},
		{Role: "user", Content: describe(item)},
	})
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("analyze %s: %w", item.ID, err)
	}
	return parseAnalysis(reply), nil
}

func parseAnalysis(reply string) domain.AnalysisResult {
	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &analysis); err != nil {
		return domain.ParseFailure(reply)
	}
	analysis.ProductName = strings.TrimSpace(analysis.ProductName)
	analysis.SearchTags = compactTags(analysis.SearchTags)
	return domain.AnalysisOf(analysis)
}

func describe(item domain.CandidateItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Popularity score: %d\n", item.Popularity)
	b.WriteString("Caption:\n")
	b.WriteString(truncate(item.Text, 4000))
	if tags, ok := item.RawMetadata["hashtags"]; ok {
		fmt.Fprintf(&b, "\nHashtags: %v", tags)
	}
	return b.String()
}

func compactTags(tags []string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
