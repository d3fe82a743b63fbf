// Package normalize turns loosely-typed collector output into canonical
// records. Everything past this boundary is strongly typed.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cbdcwatch/monitor/internal/model"
)

var (
	// Zero-width and line/paragraph separator runes that leak out of
	// scraped HTML and break CSV alignment.
	invisibleRunes = runes.Predicate(func(r rune) bool {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2028', '\u2029', '\ufeff':
			return true
		}
		return unicode.Is(unicode.Cf, r)
	})

	oneLineWS  = regexp.MustCompile(`\s+`)
	multiBlank = regexp.MustCompile(`\n\s*\n+`)
)

// UID derives the stable record identity from source and url. Identical
// input always yields the same uid, across runs and process restarts.
func UID(source, url string) string {
	raw := source + "|" + url
	if source == "" {
		raw = url
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CleanLine sanitizes a scalar field: NFC normalization, invisible rune
// removal, and whitespace collapsed to single spaces.
func CleanLine(s string) string {
	s = clean(s)
	return strings.TrimSpace(oneLineWS.ReplaceAllString(s, " "))
}

// CleanBlock sanitizes a long text field, preserving paragraph breaks
// while collapsing runs of blank lines.
func CleanBlock(s string) string {
	s = clean(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(multiBlank.ReplaceAllString(s, "\n\n"))
}

func clean(s string) string {
	t := transform.Chain(norm.NFC, runes.Remove(invisibleRunes))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize validates and sanitizes a raw item into a canonical Record.
// Every field is filled; absent values become the empty string. Pure:
// the crawl timestamp is taken from the caller's clock.
func Normalize(raw model.RawItem, now time.Time) (model.Record, error) {
	title := CleanBlock(raw.Title)
	url := CleanLine(raw.URL)
	if title == "" && url == "" {
		return model.Record{}, &model.ValidationError{
			Source: raw.Source,
			Reason: "item has neither title nor url",
		}
	}

	ct := CleanLine(raw.ContentType)
	if ct == "" {
		ct = contentTypeFromURL(url)
	}

	return model.Record{
		UID:         UID(CleanLine(raw.Source), url),
		Source:      CleanLine(raw.Source),
		Entity:      CleanLine(raw.Entity),
		Category:    CleanLine(raw.Category),
		PublishedAt: CleanLine(raw.PublishedAt),
		Title:       title,
		URL:         url,
		Abstract:    CleanBlock(raw.Abstract),
		Content:     CleanBlock(raw.Content),
		ContentType: ct,
		CrawlTime:   model.Now(now),
	}, nil
}

func contentTypeFromURL(url string) string {
	if url == "" {
		return "unknown"
	}
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return "pdf"
	}
	return "html"
}
