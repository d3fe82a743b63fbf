// Package collector turns configured upstream sources (RSS/Atom feeds,
// HTML listing pages) into raw items bounded by the lookback window.
package collector

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cbdcwatch/monitor/internal/fetcher"
	"github.com/cbdcwatch/monitor/internal/lookback"
	"github.com/cbdcwatch/monitor/internal/model"
)

// Collector produces raw items for one source. Implementations must not
// return items published before window.Start; items with no determinable
// publication date are dropped.
type Collector interface {
	Name() string
	Collect(ctx context.Context, window lookback.Window) ([]model.RawItem, error)
}

// Build instantiates a collector for each catalog source, in catalog
// order. A source with an unknown kind is an error: a typo in the
// catalog should fail loudly, not silently skip a central bank.
func Build(catalog *Catalog, f *fetcher.Fetcher, bodies *BodyFetcher) ([]Collector, error) {
	collectors := make([]Collector, 0, len(catalog.Sources))
	for _, src := range catalog.Sources {
		switch src.Kind {
		case KindRSS:
			collectors = append(collectors, newRSSCollector(src, f, bodies))
		case KindHTMLList:
			collectors = append(collectors, newHTMLListCollector(src, f, bodies))
		default:
			return nil, eris.Errorf("collector: source %q has unknown kind %q", src.Name, src.Kind)
		}
	}
	return collectors, nil
}
