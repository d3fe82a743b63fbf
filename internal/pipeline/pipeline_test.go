package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbdcwatch/monitor/internal/arbiter"
	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/judge"
	"github.com/cbdcwatch/monitor/internal/ledger"
	"github.com/cbdcwatch/monitor/internal/lookback"
	"github.com/cbdcwatch/monitor/internal/model"
)

type fakeCollector struct {
	name   string
	items  []model.RawItem
	err    error
	panics bool
	calls  int
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Collect(_ context.Context, _ lookback.Window) ([]model.RawItem, error) {
	f.calls++
	if f.panics {
		panic("collector exploded")
	}
	return f.items, f.err
}

type fakeAlerter struct {
	sourceFailures      []string
	persistenceFailures []string
}

func (f *fakeAlerter) SourceFailure(_ context.Context, source string, _ error) {
	f.sourceFailures = append(f.sourceFailures, source)
}

func (f *fakeAlerter) PersistenceFailure(_ context.Context, source string, _ error) {
	f.persistenceFailures = append(f.persistenceFailures, source)
}

type decisiveJudge struct {
	id       model.JudgeID
	decision model.Decision
}

func (j decisiveJudge) ID() model.JudgeID { return j.id }

func (j decisiveJudge) Assess(_ context.Context, _ judge.Request) (judge.Response, error) {
	return judge.Response{Decision: j.decision, Confidence: 0.9, Reasoning: "stub"}, nil
}

func item(source, title, url string) model.RawItem {
	return model.RawItem{
		Source:      source,
		Title:       title,
		URL:         url,
		PublishedAt: "2026-01-06 10:00:00",
	}
}

func newTestPipeline(t *testing.T, collectors []Collector, alerter Alerter) (*Pipeline, *ledger.Store) {
	t.Helper()
	ledgers, err := ledger.NewStore(t.TempDir())
	require.NoError(t, err)

	engine := arbiter.New(
		decisiveJudge{id: model.JudgeA, decision: model.DecisionInclude},
		decisiveJudge{id: model.JudgeB, decision: model.DecisionInclude},
		nil,
		ledgers.Audit(),
		nil,
		config.JudgesConfig{Concurrency: 2, TimeoutSecs: 5, MaxAttempts: 1},
	)

	cfg := &config.Config{Timezone: "UTC"}
	return New(cfg, ledgers, nil, engine, alerter, collectors, nil), ledgers
}

func TestRunHappyPath(t *testing.T) {
	a := &fakeCollector{name: "rss", items: []model.RawItem{
		item("rss", "CBDC pilot launch", "https://example.org/a"),
		item("rss", "Digital euro speech", "https://example.org/b"),
	}}
	p, ledgers := newTestPipeline(t, []Collector{a}, nil)

	summary, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusOK, summary.Status)
	assert.Equal(t, 2, summary.TotalCollected)
	assert.Equal(t, 2, summary.TotalNew)
	assert.Equal(t, 2, summary.TotalRelevant)
	assert.Empty(t, summary.FailedSources)
	assert.Empty(t, summary.FailedJudges)

	// ledgers and the global merge exist on disk
	for _, name := range []string{
		"rss_standard_all.csv", "rss_standard_new.csv",
		"GLOBAL_standard_all.csv", "GLOBAL_standard_new.csv",
	} {
		_, statErr := os.Stat(filepath.Join(ledgers.Dir(), name))
		assert.NoError(t, statErr, name)
	}

	recs, err := ledgers.GlobalNew()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRunSourceIsolation(t *testing.T) {
	healthy := &fakeCollector{name: "rss", items: []model.RawItem{
		item("rss", "CBDC pilot launch", "https://example.org/a"),
	}}
	exploding := &fakeCollector{name: "boj", panics: true}
	failing := &fakeCollector{name: "ecb", err: errors.New("connection refused")}

	alerter := &fakeAlerter{}
	p, ledgers := newTestPipeline(t, []Collector{healthy, exploding, failing}, alerter)

	summary, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err, "per-source failures never fail the run")

	assert.Equal(t, model.RunStatusPartial, summary.Status)
	assert.ElementsMatch(t, []string{"boj", "ecb"}, summary.FailedSources)

	require.Len(t, summary.Sources, 3)
	assert.Equal(t, model.SourceOK, summary.Sources[0].Status)
	assert.Equal(t, model.SourceFailed, summary.Sources[1].Status)
	assert.Contains(t, summary.Sources[1].Error, "panic")
	assert.Equal(t, model.SourceFailed, summary.Sources[2].Status)

	// the healthy source's records made it to disk untouched
	recs, err := ledgers.GlobalNew()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rss", recs[0].Source)

	assert.ElementsMatch(t, []string{"boj", "ecb"}, alerter.sourceFailures)
}

func TestRunAllSourcesFailed(t *testing.T) {
	p, _ := newTestPipeline(t, []Collector{
		&fakeCollector{name: "a", err: errors.New("down")},
		&fakeCollector{name: "b", panics: true},
	}, nil)

	summary, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, summary.Status)
}

func TestRunSelectionOnly(t *testing.T) {
	a := &fakeCollector{name: "rss", items: []model.RawItem{item("rss", "t", "https://example.org/a")}}
	b := &fakeCollector{name: "boj"}
	p, _ := newTestPipeline(t, []Collector{a, b}, nil)

	summary, err := p.Run(context.Background(), Selection{Only: []string{"rss"}})
	require.NoError(t, err)

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls)
	require.Len(t, summary.Sources, 2)
	assert.Equal(t, model.SourceSkipped, summary.Sources[1].Status)
	assert.Equal(t, model.RunStatusOK, summary.Status)
}

func TestRunSelectionSkip(t *testing.T) {
	a := &fakeCollector{name: "rss", items: []model.RawItem{item("rss", "t", "https://example.org/a")}}
	b := &fakeCollector{name: "boj"}
	p, _ := newTestPipeline(t, []Collector{a, b}, nil)

	_, err := p.Run(context.Background(), Selection{Skip: []string{"boj"}})
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls)
}

func TestRunMergeOnly(t *testing.T) {
	a := &fakeCollector{name: "rss", items: []model.RawItem{item("rss", "t", "https://example.org/a")}}
	p, ledgers := newTestPipeline(t, []Collector{a}, nil)

	// seed a ledger through a normal run, then merge-only must not
	// touch collectors again
	_, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err)
	require.Equal(t, 1, a.calls)

	summary, err := p.Run(context.Background(), Selection{MergeOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls, "merge-only must not collect")
	assert.Equal(t, model.RunStatusOK, summary.Status)
	assert.Zero(t, summary.TotalCollected)

	recs, err := ledgers.GlobalNew()
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRunDedupAcrossRuns(t *testing.T) {
	a := &fakeCollector{name: "rss", items: []model.RawItem{
		item("rss", "same item", "https://example.org/a"),
	}}
	p, _ := newTestPipeline(t, []Collector{a}, nil)

	first, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalNew)

	second, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalCollected)
	assert.Zero(t, second.TotalNew, "second run re-collects but accepts nothing")
}

func TestRunInvalidItemsDropped(t *testing.T) {
	a := &fakeCollector{name: "rss", items: []model.RawItem{
		item("rss", "valid", "https://example.org/a"),
		{Source: "rss"}, // no title, no url
	}}
	p, _ := newTestPipeline(t, []Collector{a}, nil)

	summary, err := p.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCollected)
	assert.Equal(t, 1, summary.TotalNew)
	require.Len(t, summary.Sources, 1)
	assert.Equal(t, 1, summary.Sources[0].Invalid)
	assert.Equal(t, model.SourceOK, summary.Sources[0].Status)
}
