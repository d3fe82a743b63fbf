// Package model defines the canonical types shared across the pipeline:
// records, verdicts, arbitration outcomes, and the error taxonomy.
package model

import "time"

// TimeLayout is the canonical timestamp format used in ledger files,
// matching "YYYY-MM-DD HH:MM:SS".
const TimeLayout = "2006-01-02 15:04:05"

// StandardFields is the fixed ledger column set. Every persisted record
// carries every column; absent values are the empty string, never omitted.
var StandardFields = []string{
	"uid",
	"source",
	"entity",
	"category",
	"published_at",
	"title",
	"url",
	"abstract",
	"content",
	"content_type",
	"crawl_time",
	"is_relevant",
	"judge_a_decision",
	"judge_a_reason",
	"judge_b_decision",
	"judge_b_reason",
	"agreement",
}

// RawItem is a loosely-typed item as produced by a collector, before
// normalization. Only Title and URL are expected to be meaningful on
// every source; everything else is best-effort.
type RawItem struct {
	Source      string
	Entity      string
	Category    string
	PublishedAt string
	Title       string
	URL         string
	Abstract    string
	Content     string
	ContentType string
}

// Record is one normalized observation from one source. Records are
// created once and never mutated except to attach an arbitration Outcome.
type Record struct {
	UID         string `json:"uid"`
	Source      string `json:"source"`
	Entity      string `json:"entity"`
	Category    string `json:"category"`
	PublishedAt string `json:"published_at"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Abstract    string `json:"abstract"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	CrawlTime   string `json:"crawl_time"`

	// Attached by arbitration before final persistence.
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Row renders the record as ledger column values in StandardFields order.
func (r Record) Row() []string {
	var rel, aDec, aWhy, bDec, bWhy, agree string
	if o := r.Outcome; o != nil {
		rel = string(o.FinalDecision)
		agree = string(o.Agreement)
		if o.JudgeA != nil {
			aDec = string(o.JudgeA.Decision)
			aWhy = o.JudgeA.Reasoning
		}
		if o.JudgeB != nil {
			bDec = string(o.JudgeB.Decision)
			bWhy = o.JudgeB.Reasoning
		}
	}
	return []string{
		r.UID,
		r.Source,
		r.Entity,
		r.Category,
		r.PublishedAt,
		r.Title,
		r.URL,
		r.Abstract,
		r.Content,
		r.ContentType,
		r.CrawlTime,
		rel,
		aDec,
		aWhy,
		bDec,
		bWhy,
		agree,
	}
}

// RecordFromRow rebuilds a Record from a ledger row. Short rows (older
// ledgers without arbitration columns) are tolerated; extra columns are
// ignored.
func RecordFromRow(row []string) Record {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	rec := Record{
		UID:         get(0),
		Source:      get(1),
		Entity:      get(2),
		Category:    get(3),
		PublishedAt: get(4),
		Title:       get(5),
		URL:         get(6),
		Abstract:    get(7),
		Content:     get(8),
		ContentType: get(9),
		CrawlTime:   get(10),
	}
	if rel := get(11); rel != "" {
		out := &Outcome{
			RecordUID:     rec.UID,
			FinalDecision: Decision(rel),
			Agreement:     Agreement(get(16)),
		}
		if d := get(12); d != "" {
			out.JudgeA = &Verdict{RecordUID: rec.UID, JudgeID: JudgeA, Decision: Decision(d), Reasoning: get(13)}
		}
		if d := get(14); d != "" {
			out.JudgeB = &Verdict{RecordUID: rec.UID, JudgeID: JudgeB, Decision: Decision(d), Reasoning: get(15)}
		}
		rec.Outcome = out
	}
	return rec
}

// Now formats t in the canonical ledger timestamp layout.
func Now(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
