// Package arbiter coordinates the two judgment services: parallel
// dispatch with per-judge timeout and retry budget, OR-policy
// resolution, fail-open on total outage, and the append-only audit
// trail of every attempt.
package arbiter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/judge"
	"github.com/cbdcwatch/monitor/internal/model"
	"github.com/cbdcwatch/monitor/internal/resilience"
)

// AuditSink receives every judgment attempt, including failed ones.
type AuditSink interface {
	Append(verdicts ...model.Verdict) error
}

// Notifier is raised when both judges exhaust their retry budgets.
// It fires once per affected batch, not once per record.
type Notifier interface {
	JudgeOutage(ctx context.Context, failures map[model.JudgeID]string, recordUIDs []string)
}

// BatchResult summarizes arbitration over one batch of records.
type BatchResult struct {
	Resolved    int
	Relevant    int
	Prefiltered int
	// OutageUIDs lists records where neither judge responded and the
	// fail-open default applied.
	OutageUIDs []string
	// JudgeFailures maps a judge to its last error message when it
	// failed for at least one record.
	JudgeFailures map[model.JudgeID]string
}

// Engine runs dual-path relevance arbitration.
type Engine struct {
	judgeA      judge.Judge
	judgeB      judge.Judge
	prefilter   *judge.Prefilter
	audit       AuditSink
	notifier    Notifier
	timeout     time.Duration
	maxAttempts int
	concurrency int

	mu sync.Mutex // serializes audit appends and result aggregation
}

// New builds an Engine. notifier may be nil when alerting is not
// configured.
func New(a, b judge.Judge, prefilter *judge.Prefilter, audit AuditSink, notifier Notifier, cfg config.JudgesConfig) *Engine {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 2
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 4
	}
	return &Engine{
		judgeA:      a,
		judgeB:      b,
		prefilter:   prefilter,
		audit:       audit,
		notifier:    notifier,
		timeout:     timeout,
		maxAttempts: attempts,
		concurrency: conc,
	}
}

// ResolveBatch arbitrates every record, attaching an Outcome in place.
// Records are processed with bounded concurrency; for each record the
// two judge calls run truly in parallel. A record is never dropped: a
// total judge outage resolves to include (fail open) so unclassified
// items surface for human review.
func (e *Engine) ResolveBatch(ctx context.Context, records []model.Record) (BatchResult, error) {
	result := BatchResult{JudgeFailures: make(map[model.JudgeID]string)}
	if len(records) == 0 {
		return result, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range records {
		g.Go(func() error {
			outcome, verdicts, failures := e.resolveOne(gCtx, &records[i])

			e.mu.Lock()
			defer e.mu.Unlock()

			if err := e.audit.Append(verdicts...); err != nil {
				zap.L().Error("arbiter: audit append failed",
					zap.String("uid", records[i].UID),
					zap.Error(err),
				)
			}

			records[i].Outcome = &outcome
			result.Resolved++
			if outcome.Relevant() {
				result.Relevant++
			}
			if outcome.Agreement == model.AgreementPrefilter {
				result.Prefiltered++
			}
			if outcome.Agreement == model.AgreementNone {
				result.OutageUIDs = append(result.OutageUIDs, records[i].UID)
			}
			for id, msg := range failures {
				result.JudgeFailures[id] = msg
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(result.OutageUIDs) > 0 && e.notifier != nil {
		e.notifier.JudgeOutage(ctx, result.JudgeFailures, result.OutageUIDs)
	}

	zap.L().Info("arbiter: batch resolved",
		zap.Int("records", result.Resolved),
		zap.Int("relevant", result.Relevant),
		zap.Int("prefiltered", result.Prefiltered),
		zap.Int("outages", len(result.OutageUIDs)),
	)
	return result, ctx.Err()
}

// resolveOne runs prefilter and dual dispatch for a single record.
func (e *Engine) resolveOne(ctx context.Context, rec *model.Record) (model.Outcome, []model.Verdict, map[model.JudgeID]string) {
	req := judge.Request{
		Title:    rec.Title,
		Abstract: rec.Abstract,
		Content:  rec.Content,
		Entity:   rec.Entity,
		Category: rec.Category,
	}

	if e.prefilter != nil && !e.prefilter.Match(req) {
		skipped := []model.Verdict{
			{RecordUID: rec.UID, JudgeID: model.JudgeA, Attempt: 1, Status: model.VerdictSkipped, Decision: model.DecisionExclude, Reasoning: "no CBDC keyword"},
			{RecordUID: rec.UID, JudgeID: model.JudgeB, Attempt: 1, Status: model.VerdictSkipped, Decision: model.DecisionExclude, Reasoning: "no CBDC keyword"},
		}
		return model.Outcome{
			RecordUID:      rec.UID,
			FinalDecision:  model.DecisionExclude,
			Agreement:      model.AgreementPrefilter,
			AuditReasoning: "no CBDC keyword matched",
			JudgeA:         &skipped[0],
			JudgeB:         &skipped[1],
		}, skipped, nil
	}

	// True parallel dispatch: two independent services, latency hiding
	// matters.
	var (
		wg        sync.WaitGroup
		aFinal    *model.Verdict
		bFinal    *model.Verdict
		aAttempts []model.Verdict
		bAttempts []model.Verdict
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		aFinal, aAttempts = e.callJudge(ctx, e.judgeA, rec.UID, req)
	}()
	go func() {
		defer wg.Done()
		bFinal, bAttempts = e.callJudge(ctx, e.judgeB, rec.UID, req)
	}()
	wg.Wait()

	verdicts := append(aAttempts, bAttempts...)
	outcome := resolve(rec.UID, aFinal, bFinal)

	failures := make(map[model.JudgeID]string)
	if aFinal.Status != model.VerdictOK {
		failures[model.JudgeA] = aFinal.Reasoning
	}
	if bFinal.Status != model.VerdictOK {
		failures[model.JudgeB] = bFinal.Reasoning
	}
	return outcome, verdicts, failures
}

// callJudge runs one judge within its retry budget, recording one
// immutable Verdict per attempt. The returned final verdict is the last
// attempt's.
func (e *Engine) callJudge(ctx context.Context, j judge.Judge, uid string, req judge.Request) (*model.Verdict, []model.Verdict) {
	var attempts []model.Verdict

	policy := resilience.Policy{
		MaxAttempts: e.maxAttempts,
		// Any judge failure is worth one more try within the budget;
		// the classification of transient vs not happens at the HTTP
		// layer and is too lossy through the SDK to rely on here.
		ShouldRetry: func(error) bool { return true },
		OnRetry:     resilience.LogRetries(string(j.ID()), "assess"),
	}

	_, _ = resilience.Do(ctx, policy, func(ctx context.Context) (judge.Response, error) {
		attempt := len(attempts) + 1
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		start := time.Now()
		resp, err := j.Assess(callCtx, req)
		latency := time.Since(start)

		if err != nil {
			attempts = append(attempts, model.Verdict{
				RecordUID: uid,
				JudgeID:   j.ID(),
				Attempt:   attempt,
				Status:    verdictStatus(callCtx, err),
				Reasoning: err.Error(),
				Latency:   latency,
			})
			return judge.Response{}, err
		}

		attempts = append(attempts, model.Verdict{
			RecordUID:  uid,
			JudgeID:    j.ID(),
			Attempt:    attempt,
			Status:     model.VerdictOK,
			Decision:   resp.Decision,
			Confidence: resp.Confidence,
			Reasoning:  resp.Reasoning,
			Latency:    latency,
		})
		return resp, nil
	})

	final := attempts[len(attempts)-1]
	return &final, attempts
}

func verdictStatus(ctx context.Context, err error) model.VerdictStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.VerdictTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return model.VerdictTimeout
	}
	return model.VerdictError
}

// resolve derives the arbitration outcome from the two final verdicts.
// Pure function of its inputs.
func resolve(uid string, a, b *model.Verdict) model.Outcome {
	aOK := a != nil && a.Status == model.VerdictOK
	bOK := b != nil && b.Status == model.VerdictOK

	out := model.Outcome{RecordUID: uid, JudgeA: a, JudgeB: b}

	switch {
	case aOK && bOK:
		// OR-policy: a missed CBDC development is costlier than a
		// false positive, which is human-reviewable downstream.
		if a.Decision == model.DecisionInclude || b.Decision == model.DecisionInclude {
			out.FinalDecision = model.DecisionInclude
		} else {
			out.FinalDecision = model.DecisionExclude
		}
		if a.Decision == b.Decision {
			out.Agreement = model.AgreementBoth
		} else {
			out.Agreement = model.AgreementSplit
		}
		out.AuditReasoning = joinReasoning(a, b)

	case aOK:
		out.FinalDecision = a.Decision
		out.Agreement = model.AgreementSingle
		out.AuditReasoning = joinReasoning(a, b)

	case bOK:
		out.FinalDecision = b.Decision
		out.Agreement = model.AgreementSingle
		out.AuditReasoning = joinReasoning(a, b)

	default:
		// Fail open: surface for human review rather than drop.
		out.FinalDecision = model.DecisionInclude
		out.Agreement = model.AgreementNone
		out.AuditReasoning = "both judges unavailable; included for review"
	}
	return out
}

func joinReasoning(a, b *model.Verdict) string {
	var parts []string
	for _, v := range []*model.Verdict{a, b} {
		if v == nil {
			continue
		}
		if v.Status == model.VerdictOK {
			parts = append(parts, string(v.JudgeID)+": "+v.Reasoning)
		} else {
			parts = append(parts, string(v.JudgeID)+" ("+string(v.Status)+")")
		}
	}
	return strings.Join(parts, "; ")
}
