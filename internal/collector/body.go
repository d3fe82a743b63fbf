package collector

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/fetcher"
)

// BodyFetcher retrieves article bodies for items whose collectors opt
// into content fetching, under a run-wide budget. Once the budget is
// spent, Fetch returns empty content and the record keeps an empty
// content field for later backfill.
type BodyFetcher struct {
	fetcher   *fetcher.Fetcher
	remaining atomic.Int64
}

// NewBodyFetcher wraps f with a fetch budget. cap <= 0 disables body
// fetching entirely.
func NewBodyFetcher(f *fetcher.Fetcher, cap int) *BodyFetcher {
	b := &BodyFetcher{fetcher: f}
	b.remaining.Store(int64(cap))
	return b
}

// Fetch returns the extracted article text for url, or "" when the
// budget is spent, the document is not HTML, or retrieval fails.
// Failures here never fail the collector: body text is enrichment, the
// record is valid without it.
func (b *BodyFetcher) Fetch(ctx context.Context, url, contentType string) string {
	if b == nil || url == "" || contentType != "html" {
		return ""
	}
	if b.remaining.Add(-1) < 0 {
		return ""
	}
	body, err := b.fetcher.Get(ctx, url)
	if err != nil {
		zap.L().Debug("collector: body fetch failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(ExtractText(body))
}
