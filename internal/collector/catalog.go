package collector

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SourceKind selects the collector implementation for a catalog entry.
type SourceKind string

const (
	KindRSS      SourceKind = "rss"
	KindHTMLList SourceKind = "html_list"
)

// Feed is one RSS/Atom feed within an rss source. Entity and Category
// carry through to every record the feed yields.
type Feed struct {
	Entity   string `yaml:"entity"`
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
	// Ordered marks feeds that publish newest-first, allowing the scan
	// to stop at the first item older than the lookback window.
	Ordered bool `yaml:"ordered"`
}

// Source is one catalog entry. Exactly one ledger pair is written per
// source name.
type Source struct {
	Name string     `yaml:"name"`
	Kind SourceKind `yaml:"kind"`

	// rss kind
	Feeds []Feed `yaml:"feeds,omitempty"`

	// html_list kind
	URL             string   `yaml:"url,omitempty"`
	BaseURL         string   `yaml:"base_url,omitempty"`
	Entity          string   `yaml:"entity,omitempty"`
	Category        string   `yaml:"category,omitempty"`
	IncludePatterns []string `yaml:"include_patterns,omitempty"`

	// FetchContent enables per-item body retrieval, bounded by the
	// run-wide budget.
	FetchContent bool `yaml:"fetch_content,omitempty"`
}

// Catalog is the parsed sources file.
type Catalog struct {
	Sources []Source `yaml:"sources"`
}

// LoadCatalog reads and validates the sources file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "collector: read sources file %s", path)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, eris.Wrapf(err, "collector: parse sources file %s", path)
	}

	seen := make(map[string]bool, len(cat.Sources))
	for _, src := range cat.Sources {
		if src.Name == "" {
			return nil, eris.New("collector: source with empty name")
		}
		if seen[src.Name] {
			return nil, eris.Errorf("collector: duplicate source name %q", src.Name)
		}
		seen[src.Name] = true

		switch src.Kind {
		case KindRSS:
			if len(src.Feeds) == 0 {
				return nil, eris.Errorf("collector: rss source %q has no feeds", src.Name)
			}
		case KindHTMLList:
			if src.URL == "" {
				return nil, eris.Errorf("collector: html_list source %q has no url", src.Name)
			}
		default:
			return nil, eris.Errorf("collector: source %q has unknown kind %q", src.Name, src.Kind)
		}
	}
	return &cat, nil
}

// Names returns catalog source names in order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		names = append(names, s.Name)
	}
	return names
}
