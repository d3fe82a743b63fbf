package judge

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
)

// defaultKeywords is the built-in CBDC vocabulary used by the
// prefilter. Matching any one term sends a record to the judges;
// matching none resolves it as irrelevant without a network call.
var defaultKeywords = []string{
	"cbdc",
	"central bank digital currency",
	"digital currency",
	"digital euro",
	"digital dollar",
	"e-cny",
	"digital yuan",
	"digital pound",
	"digital rupee",
	"digital ruble",
	"digital real",
	"digital won",
	"tokenized deposit",
	"rln",
	"regulated liability network",
	"wholesale cbdc",
	"retail cbdc",
	"stablecoin",
	"crypto asset",
	"ledger technology",
	"dlt",
	"blockchain",
}

// Prefilter is the keyword gate run before any judge dispatch.
type Prefilter struct {
	keywords []string
}

// NewPrefilter builds a prefilter. An empty override keeps the built-in
// vocabulary.
func NewPrefilter(override []string) *Prefilter {
	kw := defaultKeywords
	if len(override) > 0 {
		kw = override
	}
	lowered := make([]string, len(kw))
	for i, k := range kw {
		lowered[i] = strings.ToLower(k)
	}
	return &Prefilter{keywords: lowered}
}

// Match reports whether any keyword appears in the request text.
func (p *Prefilter) Match(req Request) bool {
	text := strings.ToLower(req.Title + " " + req.Abstract + " " + req.Content)
	for _, k := range p.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// LoadKeywordsFromNotion reads the keyword vocabulary from a Notion
// database where each page's title property is one term. Failures fall
// back to the built-in list rather than blocking the run.
func LoadKeywordsFromNotion(ctx context.Context, client *notionapi.Client, databaseID string) []string {
	resp, err := client.Database.Query(ctx, notionapi.DatabaseID(databaseID), &notionapi.DatabaseQueryRequest{
		PageSize: 100,
	})
	if err != nil {
		zap.L().Warn("judge: notion keyword registry unavailable, using built-in list", zap.Error(err))
		return nil
	}

	var keywords []string
	for _, page := range resp.Results {
		for _, prop := range page.Properties {
			title, ok := prop.(*notionapi.TitleProperty)
			if !ok {
				continue
			}
			var parts []string
			for _, rt := range title.Title {
				parts = append(parts, rt.PlainText)
			}
			if term := strings.TrimSpace(strings.Join(parts, "")); term != "" {
				keywords = append(keywords, term)
			}
		}
	}

	zap.L().Info("judge: loaded keyword registry from notion", zap.Int("terms", len(keywords)))
	return keywords
}
