// Package alert delivers pipeline failure notifications to a webhook.
// Alerts are best effort: delivery failures are logged and never block
// the run.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/model"
)

// Kind identifies the kind of alert.
type Kind string

const (
	KindJudgeOutage        Kind = "judge_outage"
	KindSourceFailure      Kind = "source_failure"
	KindPersistenceFailure Kind = "persistence_failure"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Kind      Kind           `json:"kind"`
	Severity  string         `json:"severity"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter sends alerts to the configured webhook URL. An empty URL
// disables delivery; alerts are still logged.
type Alerter struct {
	cfg    config.AlertConfig
	client *http.Client
}

// New creates an Alerter with the given alert config.
func New(cfg config.AlertConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// JudgeOutage reports that both judges exhausted their retry budgets
// for a batch of records. Called at most once per batch.
func (a *Alerter) JudgeOutage(ctx context.Context, failures map[model.JudgeID]string, recordUIDs []string) {
	details := map[string]any{
		"record_count": len(recordUIDs),
		"record_uids":  recordUIDs,
	}
	for id, msg := range failures {
		details[string(id)+"_error"] = msg
	}
	a.send(ctx, Alert{
		Kind:     KindJudgeOutage,
		Severity: "high",
		Subject:  "judges",
		Message: fmt.Sprintf(
			"both judges unavailable; %d record(s) included unclassified for review",
			len(recordUIDs),
		),
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

// SourceFailure reports an isolated source unit failure.
func (a *Alerter) SourceFailure(ctx context.Context, source string, err error) {
	a.send(ctx, Alert{
		Kind:      KindSourceFailure,
		Severity:  "medium",
		Subject:   source,
		Message:   fmt.Sprintf("source %s failed: %v", source, err),
		Details:   map[string]any{"error": err.Error()},
		Timestamp: time.Now().UTC(),
	})
}

// PersistenceFailure reports a ledger write failure for a source.
func (a *Alerter) PersistenceFailure(ctx context.Context, source string, err error) {
	a.send(ctx, Alert{
		Kind:      KindPersistenceFailure,
		Severity:  "high",
		Subject:   source,
		Message:   fmt.Sprintf("ledger write for %s failed: %v", source, err),
		Details:   map[string]any{"error": err.Error()},
		Timestamp: time.Now().UTC(),
	})
}

func (a *Alerter) send(ctx context.Context, al Alert) {
	zap.L().Warn("alert raised",
		zap.String("kind", string(al.Kind)),
		zap.String("subject", al.Subject),
		zap.String("message", al.Message),
	)
	if a.cfg.WebhookURL == "" {
		return
	}
	if err := a.sendWebhook(ctx, al); err != nil {
		zap.L().Error("alert: webhook delivery failed",
			zap.String("kind", string(al.Kind)),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("alert sent",
		zap.String("kind", string(al.Kind)),
		zap.String("severity", al.Severity),
	)
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, al Alert) error {
	payload, err := json.Marshal(al)
	if err != nil {
		return eris.Wrap(err, "alert: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alert: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
