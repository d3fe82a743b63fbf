package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/model"
)

func TestJudgeOutagePostsWebhook(t *testing.T) {
	var received Alert
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(config.AlertConfig{WebhookURL: srv.URL})
	a.JudgeOutage(context.Background(),
		map[model.JudgeID]string{model.JudgeA: "timeout", model.JudgeB: "503"},
		[]string{"uid-1", "uid-2"},
	)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, KindJudgeOutage, received.Kind)
	assert.Equal(t, "high", received.Severity)
	assert.Contains(t, received.Message, "2 record(s)")
	assert.EqualValues(t, 2, received.Details["record_count"])
}

func TestSourceFailurePayload(t *testing.T) {
	var received Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(config.AlertConfig{WebhookURL: srv.URL})
	a.SourceFailure(context.Background(), "pboc", errors.New("connection reset"))

	assert.Equal(t, KindSourceFailure, received.Kind)
	assert.Equal(t, "pboc", received.Subject)
	assert.Contains(t, received.Message, "connection reset")
}

func TestNoWebhookConfiguredIsNoop(t *testing.T) {
	a := New(config.AlertConfig{})
	// must not panic or block
	a.PersistenceFailure(context.Background(), "pboc", errors.New("disk full"))
}

func TestWebhookErrorDoesNotPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(config.AlertConfig{WebhookURL: srv.URL})
	// delivery failure is swallowed and logged
	a.JudgeOutage(context.Background(), nil, []string{"uid-1"})
}
