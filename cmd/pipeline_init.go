package main

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/alert"
	"github.com/cbdcwatch/monitor/internal/arbiter"
	"github.com/cbdcwatch/monitor/internal/collector"
	"github.com/cbdcwatch/monitor/internal/fetcher"
	"github.com/cbdcwatch/monitor/internal/judge"
	"github.com/cbdcwatch/monitor/internal/ledger"
	"github.com/cbdcwatch/monitor/internal/pipeline"
	"github.com/cbdcwatch/monitor/internal/store"
	anthropicpkg "github.com/cbdcwatch/monitor/pkg/anthropic"
	"github.com/cbdcwatch/monitor/pkg/openrouter"
)

// pipelineEnv holds everything the run/classify/serve commands need.
type pipelineEnv struct {
	Ledgers  *ledger.Store
	Store    store.Store
	Engine   *arbiter.Engine
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initLedgers opens the data directory. Used standalone by commands
// that don't need the full pipeline.
func initLedgers() (*ledger.Store, error) {
	return ledger.NewStore(cfg.DataDir)
}

// initEngine builds the arbitration engine: both judge clients, the
// keyword prefilter (optionally refreshed from Notion), the audit
// writer, and the outage alerter.
func initEngine(ctx context.Context, ledgers *ledger.Store) *arbiter.Engine {
	judgeA := judge.NewAnthropic(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	judgeB := judge.NewOpenRouter(
		openrouter.NewClient(cfg.OpenRouter.Key,
			openrouter.WithBaseURL(cfg.OpenRouter.BaseURL),
			openrouter.WithModel(cfg.OpenRouter.Model),
		),
		cfg.OpenRouter.Model,
	)

	keywords := cfg.Judges.Keywords
	if cfg.Notion.Token != "" && cfg.Notion.KeywordDB != "" {
		notionClient := notionapi.NewClient(notionapi.Token(cfg.Notion.Token))
		if remote := judge.LoadKeywordsFromNotion(ctx, notionClient, cfg.Notion.KeywordDB); len(remote) > 0 {
			keywords = remote
			zap.L().Info("keyword list loaded from notion", zap.Int("count", len(remote)))
		}
	}

	return arbiter.New(
		judgeA,
		judgeB,
		judge.NewPrefilter(keywords),
		ledgers.Audit(),
		alert.New(cfg.Alert),
		cfg.Judges,
	)
}

// initPipeline sets up ledgers, the run store, collectors, and the
// arbitration engine. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	ledgers, err := initLedgers()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}

	catalog, err := collector.LoadCatalog(cfg.SourcesFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	httpFetcher := fetcher.New(cfg.Fetch)
	bodies := collector.NewBodyFetcher(httpFetcher, cfg.Fetch.ContentFetchCap)
	collectors, err := collector.Build(catalog, httpFetcher, bodies)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := initEngine(ctx, ledgers)

	pipelineCollectors := make([]pipeline.Collector, 0, len(collectors))
	for _, c := range collectors {
		pipelineCollectors = append(pipelineCollectors, c)
	}

	p := pipeline.New(cfg, ledgers, st, engine, alert.New(cfg.Alert), pipelineCollectors, bodies)
	return &pipelineEnv{
		Ledgers:  ledgers,
		Store:    st,
		Engine:   engine,
		Pipeline: p,
	}, nil
}
