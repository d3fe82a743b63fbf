package collector

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/cbdcwatch/monitor/internal/fetcher"
	"github.com/cbdcwatch/monitor/internal/lookback"
	"github.com/cbdcwatch/monitor/internal/model"
)

// feedDoc accepts both RSS 2.0 (channel/item) and Atom (entry) in one
// decode pass.
type feedDoc struct {
	XMLName xml.Name
	Channel *feedChannel `xml:"channel"`
	Entries []atomEntry  `xml:"entry"`
}

type feedChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	DCDate      string `xml:"date"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// feedEntry is the format-neutral view both branches reduce to.
type feedEntry struct {
	title   string
	link    string
	summary string
	rawDate string
}

type rssCollector struct {
	src    Source
	fetch  *fetcher.Fetcher
	bodies *BodyFetcher
}

func newRSSCollector(src Source, f *fetcher.Fetcher, bodies *BodyFetcher) *rssCollector {
	return &rssCollector{src: src, fetch: f, bodies: bodies}
}

func (c *rssCollector) Name() string { return c.src.Name }

// Collect polls every configured feed. A single failing feed is logged
// and skipped; the remaining feeds still contribute. The source only
// errors when every feed failed, so one flaky central bank endpoint
// does not blank the whole source.
func (c *rssCollector) Collect(ctx context.Context, window lookback.Window) ([]model.RawItem, error) {
	var items []model.RawItem
	var failed int
	var lastErr error

	for _, feed := range c.src.Feeds {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}
		feedItems, err := c.collectFeed(ctx, feed, window)
		if err != nil {
			failed++
			lastErr = err
			zap.L().Warn("collector: feed failed",
				zap.String("source", c.src.Name),
				zap.String("feed", feed.URL),
				zap.Error(err),
			)
			continue
		}
		items = append(items, feedItems...)
	}

	if failed == len(c.src.Feeds) && failed > 0 {
		return nil, eris.Wrapf(lastErr, "collector: all %d feeds failed for %s", failed, c.src.Name)
	}
	return items, nil
}

func (c *rssCollector) collectFeed(ctx context.Context, feed Feed, window lookback.Window) ([]model.RawItem, error) {
	body, err := c.fetch.Get(ctx, feed.URL)
	if err != nil {
		return nil, err
	}
	entries, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	var items []model.RawItem
	for _, e := range entries {
		published, ok := entryDate(e)
		if !ok {
			continue
		}
		if published.Before(window.Start) {
			if feed.Ordered {
				break
			}
			continue
		}

		link := resolveLink(e.link, feed.URL)
		contentType := contentTypeOf(link)
		item := model.RawItem{
			Source:      c.src.Name,
			Entity:      feed.Entity,
			Category:    feed.Category,
			PublishedAt: published.Format(model.TimeLayout),
			Title:       stripMarkup(e.title),
			URL:         link,
			Abstract:    stripMarkup(e.summary),
			ContentType: contentType,
		}
		if c.src.FetchContent {
			item.Content = c.bodies.Fetch(ctx, link, contentType)
		}
		items = append(items, item)
	}
	return items, nil
}

// parseFeed decodes an RSS 2.0 or Atom document, tolerating non-UTF-8
// charsets.
func parseFeed(data []byte) ([]feedEntry, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "collector: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var doc feedDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "collector: decode feed")
	}

	var entries []feedEntry
	if doc.Channel != nil {
		for _, it := range doc.Channel.Items {
			rawDate := it.PubDate
			if rawDate == "" {
				rawDate = it.DCDate
			}
			entries = append(entries, feedEntry{
				title:   it.Title,
				link:    strings.TrimSpace(it.Link),
				summary: it.Description,
				rawDate: rawDate,
			})
		}
	}
	for _, e := range doc.Entries {
		rawDate := e.Published
		if rawDate == "" {
			rawDate = e.Updated
		}
		summary := e.Summary
		if summary == "" {
			summary = e.Content
		}
		entries = append(entries, feedEntry{
			title:   e.Title,
			link:    atomHref(e.Links),
			summary: summary,
			rawDate: rawDate,
		})
	}
	return entries, nil
}

// entryDate resolves an entry's publication time: the declared feed
// date first, then a heuristic scrape of title and summary.
func entryDate(e feedEntry) (time.Time, bool) {
	if t, ok := ParseDate(e.rawDate); ok {
		return t, true
	}
	return ExtractDate(e.title + " " + e.summary)
}

// atomHref prefers the alternate link, falling back to the first.
func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// resolveLink absolutizes a relative item link against its feed URL.
// Several banks (TCMB, SARB) publish site-relative links.
func resolveLink(link, feedURL string) string {
	if link == "" || strings.HasPrefix(link, "http") {
		return link
	}
	base, err := url.Parse(feedURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

func contentTypeOf(link string) string {
	if link == "" {
		return "unknown"
	}
	if strings.HasSuffix(strings.ToLower(link), ".pdf") {
		return "pdf"
	}
	return "html"
}

// stripMarkup flattens an HTML fragment (common in RSS descriptions)
// to plain text.
func stripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.TrimSpace(spaceRe.ReplaceAllString(sb.String(), " "))
}
