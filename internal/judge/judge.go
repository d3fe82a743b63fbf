// Package judge defines the judgment-service interface consumed by the
// arbitration engine, plus the two concrete judges and the keyword
// prefilter that short-circuits obviously irrelevant records.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cbdcwatch/monitor/internal/model"
)

// Request carries the record fields a judge sees.
type Request struct {
	Title    string
	Abstract string
	Content  string
	Entity   string
	Category string
}

// Response is one judge's parsed opinion.
type Response struct {
	Decision   model.Decision
	Confidence float64
	Reasoning  string
}

// Judge renders an include/exclude verdict about one record. A failed
// call returns an error; the arbiter turns it into a status=error or
// status=timeout Verdict, never an uncaught fault.
type Judge interface {
	ID() model.JudgeID
	Assess(ctx context.Context, req Request) (Response, error)
}

const relevancePrompt = `You are a financial intelligence analyst monitoring central bank digital currency (CBDC) developments worldwide.

Assess whether the item below concerns the CBDC domain.

Relevant: explicit CBDC initiatives (e-CNY, digital euro, digital dollar, digital pound, digital rupee, and peers), CBDC policy or legal frameworks, wholesale or retail CBDC pilots, and enabling infrastructure such as DLT, tokenized deposits, or regulated liability networks.
Not relevant: cryptocurrency price movements, general money supply statistics, personnel changes, or AML/digital-credit items with no CBDC angle.

Respond with a single JSON object and nothing else:
{"is_relevant": true|false, "confidence": 0.0-1.0, "reasoning": "<one sentence, under 30 words>"}`

const relevanceItem = `Title: %s
Entity: %s
Category: %s
Abstract: %s
Content sample: %s`

// contentSample caps how much body text is sent to a judge.
const contentSample = 1000

func buildItem(req Request) string {
	content := req.Content
	if len(content) > contentSample {
		content = content[:contentSample]
	}
	return fmt.Sprintf(relevanceItem, req.Title, req.Entity, req.Category, req.Abstract, content)
}

// parseResponse extracts a Response from raw model output. Markdown
// fences and surrounding prose are tolerated; anything unparseable is
// an error so the attempt is recorded as failed rather than silently
// mapped to exclude.
func parseResponse(text string) (Response, error) {
	text = cleanJSON(text)

	var raw struct {
		IsRelevant bool    `json:"is_relevant"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Response{}, eris.Wrap(err, "judge: parse verdict")
	}

	decision := model.DecisionExclude
	if raw.IsRelevant {
		decision = model.DecisionInclude
	}
	return Response{
		Decision:   decision,
		Confidence: raw.Confidence,
		Reasoning:  raw.Reasoning,
	}, nil
}

// cleanJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
