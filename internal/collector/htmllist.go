package collector

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/cbdcwatch/monitor/internal/fetcher"
	"github.com/cbdcwatch/monitor/internal/lookback"
	"github.com/cbdcwatch/monitor/internal/model"
)

// htmlListCollector scrapes a "what's new" style listing page: every
// anchor matching the configured patterns becomes a candidate item,
// dated from the anchor's own text or its surrounding row. Listing
// pages carry no ordering guarantee, so the whole page is scanned and
// out-of-window items are skipped individually.
type htmlListCollector struct {
	src    Source
	fetch  *fetcher.Fetcher
	bodies *BodyFetcher
}

func newHTMLListCollector(src Source, f *fetcher.Fetcher, bodies *BodyFetcher) *htmlListCollector {
	return &htmlListCollector{src: src, fetch: f, bodies: bodies}
}

func (c *htmlListCollector) Name() string { return c.src.Name }

func (c *htmlListCollector) Collect(ctx context.Context, window lookback.Window) ([]model.RawItem, error) {
	body, err := c.fetch.Get(ctx, c.src.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "collector: fetch list page for %s", c.src.Name)
	}
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrapf(err, "collector: parse list page for %s", c.src.Name)
	}

	var items []model.RawItem
	seen := make(map[string]bool)

	for _, a := range findAnchors(root) {
		href := strings.TrimSpace(attrVal(a.node, "href"))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			continue
		}
		if !c.matches(href) {
			continue
		}
		link := c.absolutize(href)
		if seen[link] {
			continue
		}

		title := nodeText(a.node)
		if title == "" {
			continue
		}

		// The listing row (the anchor's parent chain) usually carries
		// the date even when the anchor text does not.
		published, ok := ExtractDate(title)
		if !ok {
			published, ok = ExtractDate(a.rowText)
		}
		if !ok || published.Before(window.Start) {
			continue
		}
		seen[link] = true

		contentType := contentTypeOf(link)
		item := model.RawItem{
			Source:      c.src.Name,
			Entity:      c.src.Entity,
			Category:    c.src.Category,
			PublishedAt: published.Format(model.TimeLayout),
			Title:       title,
			URL:         link,
			ContentType: contentType,
		}
		if c.src.FetchContent {
			item.Content = c.bodies.Fetch(ctx, link, contentType)
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *htmlListCollector) matches(href string) bool {
	if len(c.src.IncludePatterns) == 0 {
		return true
	}
	for _, p := range c.src.IncludePatterns {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

func (c *htmlListCollector) absolutize(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base := c.src.BaseURL
	if base == "" {
		base = c.src.URL
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

type anchorInfo struct {
	node    *html.Node
	rowText string
}

// findAnchors collects every anchor with the text of its nearest
// block-level ancestor, which stands in for the listing row.
func findAnchors(root *html.Node) []anchorInfo {
	var anchors []anchorInfo
	var walk func(n *html.Node, row *html.Node)
	walk = func(n, row *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			switch n.Data {
			case "li", "tr", "dd", "dt", "div", "p":
				row = n
			case "a":
				info := anchorInfo{node: n}
				if row != nil {
					info.rowText = nodeText(row)
				}
				anchors = append(anchors, info)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, row)
		}
	}
	walk(root, nil)
	return anchors
}
