// Package pipeline orchestrates a full monitoring run: per-source
// collection and normalization, dedup against the ledgers, relevance
// arbitration, flush, and the global merge. Sources run sequentially
// and in isolation; one source failing, panicking, or timing out never
// touches another source's records.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/arbiter"
	"github.com/cbdcwatch/monitor/internal/collector"
	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/ledger"
	"github.com/cbdcwatch/monitor/internal/lookback"
	"github.com/cbdcwatch/monitor/internal/model"
	"github.com/cbdcwatch/monitor/internal/normalize"
	"github.com/cbdcwatch/monitor/internal/store"
)

// Collector is the collection surface the pipeline drives, satisfied by
// the collector package's implementations.
type Collector interface {
	Name() string
	Collect(ctx context.Context, window lookback.Window) ([]model.RawItem, error)
}

// Alerter is the failure notification surface the pipeline uses.
type Alerter interface {
	SourceFailure(ctx context.Context, source string, err error)
	PersistenceFailure(ctx context.Context, source string, err error)
}

// Selection controls which sources a run touches.
type Selection struct {
	// Only restricts the run to the named sources. Empty means all.
	Only []string
	// Skip excludes the named sources.
	Skip []string
	// MergeOnly skips collection and arbitration entirely and just
	// rebuilds the global ledgers from what is on disk.
	MergeOnly bool
}

func (s Selection) includes(name string) bool {
	for _, skip := range s.Skip {
		if skip == name {
			return false
		}
	}
	if len(s.Only) == 0 {
		return true
	}
	for _, only := range s.Only {
		if only == name {
			return true
		}
	}
	return false
}

// Pipeline wires the run together.
type Pipeline struct {
	cfg        *config.Config
	ledgers    *ledger.Store
	runs       store.Store
	engine     *arbiter.Engine
	alerter    Alerter
	collectors []Collector
	bodies     *collector.BodyFetcher
}

// New creates a Pipeline. runs may be nil when history persistence is
// not configured; alerter may be nil.
func New(
	cfg *config.Config,
	ledgers *ledger.Store,
	runs store.Store,
	engine *arbiter.Engine,
	alerter Alerter,
	collectors []Collector,
	bodies *collector.BodyFetcher,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		ledgers:    ledgers,
		runs:       runs,
		engine:     engine,
		alerter:    alerter,
		collectors: collectors,
		bodies:     bodies,
	}
}

// Run executes one full pipeline pass. The returned summary is always
// non-nil; the error is reserved for run-level setup failures (store,
// merge). Per-source failures are contained in the summary.
func (p *Pipeline) Run(ctx context.Context, sel Selection) (*model.RunSummary, error) {
	started := time.Now()
	summary := &model.RunSummary{Status: model.RunStatusRunning, StartedAt: started.UTC()}

	var runID string
	if p.runs != nil {
		run, err := p.runs.CreateRun(ctx)
		if err != nil {
			return summary, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		summary.RunID = runID
	}

	loc := time.UTC
	if p.cfg.Timezone != "" {
		l, err := time.LoadLocation(p.cfg.Timezone)
		if err != nil {
			return summary, eris.Wrapf(err, "pipeline: load timezone %s", p.cfg.Timezone)
		}
		loc = l
	}
	window := lookback.Range(time.Now().In(loc))

	runCtx := ctx
	if p.cfg.RunTimeoutMins > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.RunTimeoutMins)*time.Minute)
		defer cancel()
	}

	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Bool("merge_only", sel.MergeOnly),
	)

	if !sel.MergeOnly {
		failedJudges := make(map[model.JudgeID]bool)
		for _, c := range p.collectors {
			if !sel.includes(c.Name()) {
				summary.Sources = append(summary.Sources, model.SourceResult{
					Source: c.Name(),
					Status: model.SourceSkipped,
				})
				continue
			}
			result, batch := p.runSource(runCtx, c, window)
			summary.Sources = append(summary.Sources, result)
			summary.TotalCollected += result.Collected
			summary.TotalNew += result.New
			summary.TotalRelevant += batch.Relevant
			for id := range batch.JudgeFailures {
				failedJudges[id] = true
			}
			if result.Status == model.SourceFailed {
				summary.FailedSources = append(summary.FailedSources, result.Source)
			}
		}
		for _, id := range []model.JudgeID{model.JudgeA, model.JudgeB} {
			if failedJudges[id] {
				summary.FailedJudges = append(summary.FailedJudges, string(id))
			}
		}
	}

	// Merge runs even after per-source failures: the global view should
	// reflect every ledger that did flush.
	mergeErr := p.ledgers.Merge()
	if mergeErr != nil {
		log.Error("pipeline: merge failed", zap.Error(mergeErr))
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Status = runStatus(summary, mergeErr)

	if p.runs != nil {
		if err := p.runs.UpdateRunSummary(ctx, runID, summary); err != nil {
			log.Warn("pipeline: record summary failed", zap.Error(err))
		}
	}

	log.Info("pipeline: run finished",
		zap.String("status", string(summary.Status)),
		zap.Int("collected", summary.TotalCollected),
		zap.Int("new", summary.TotalNew),
		zap.Int("relevant", summary.TotalRelevant),
		zap.Strings("failed_sources", summary.FailedSources),
	)
	return summary, eris.Wrap(mergeErr, "pipeline: merge")
}

// runSource is the isolated execution unit for one source. Collection,
// normalization, dedup, arbitration, and flush all happen inside; any
// panic is contained here.
func (p *Pipeline) runSource(ctx context.Context, c Collector, window lookback.Window) (result model.SourceResult, batch arbiter.BatchResult) {
	start := time.Now()
	result = model.SourceResult{Source: c.Name(), Status: model.SourceOK}
	log := zap.L().With(zap.String("source", c.Name()))

	defer func() {
		result.Duration = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			result.Status = model.SourceFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			log.Error("pipeline: source panicked", zap.Any("panic", r))
			if p.alerter != nil {
				p.alerter.SourceFailure(ctx, c.Name(), eris.Errorf("panic: %v", r))
			}
		}
	}()

	fail := func(err error, persistence bool) {
		result.Status = model.SourceFailed
		result.Error = err.Error()
		log.Error("pipeline: source failed", zap.Error(err))
		if p.alerter != nil {
			if persistence {
				p.alerter.PersistenceFailure(ctx, c.Name(), err)
			} else {
				p.alerter.SourceFailure(ctx, c.Name(), err)
			}
		}
	}

	led, err := p.ledgers.Open(c.Name())
	if err != nil {
		fail(err, true)
		return result, batch
	}

	items, err := c.Collect(ctx, window)
	if err != nil {
		fail(&model.FetchError{Source: c.Name(), Err: err}, false)
		return result, batch
	}
	result.Collected = len(items)

	now := time.Now()
	for _, item := range items {
		rec, err := normalize.Normalize(item, now)
		if err != nil {
			result.Invalid++
			log.Warn("pipeline: invalid item dropped",
				zap.String("title", item.Title),
				zap.Error(err),
			)
			continue
		}
		led.Accept(rec)
	}
	accepted := led.Accepted()
	result.New = len(accepted)

	p.backfill(ctx, led)

	if len(accepted) > 0 && p.engine != nil {
		// Arbitration failures never drop records: the engine fails
		// open and the records flush regardless.
		batch, err = p.engine.ResolveBatch(ctx, accepted)
		if err != nil {
			log.Warn("pipeline: arbitration interrupted", zap.Error(err))
		}
	}

	if err := led.Flush(); err != nil {
		fail(err, true)
		return result, batch
	}

	log.Info("pipeline: source done",
		zap.Int("collected", result.Collected),
		zap.Int("new", result.New),
		zap.Int("invalid", result.Invalid),
	)
	return result, batch
}

// backfill fills empty content columns in a source's history using the
// shared body-fetch budget. Purely additive; failure is silent.
func (p *Pipeline) backfill(ctx context.Context, led *ledger.SourceLedger) {
	if p.bodies == nil {
		return
	}
	for _, rec := range led.EmptyContent() {
		if ctx.Err() != nil {
			return
		}
		body := p.bodies.Fetch(ctx, rec.URL, rec.ContentType)
		if body == "" {
			continue
		}
		led.BackfillContent(rec.UID, normalize.CleanBlock(body))
	}
}

func runStatus(summary *model.RunSummary, mergeErr error) model.RunStatus {
	attempted := 0
	for _, s := range summary.Sources {
		if s.Status != model.SourceSkipped {
			attempted++
		}
	}
	switch {
	case mergeErr != nil:
		return model.RunStatusFailed
	case attempted > 0 && len(summary.FailedSources) == attempted:
		return model.RunStatusFailed
	case len(summary.FailedSources) > 0:
		return model.RunStatusPartial
	default:
		return model.RunStatusOK
	}
}
