// Package fetcher is the shared HTTP client for collectors: per-host
// rate limiting, retry with backoff, and a capped response size. Central
// bank sites are rate-limit- and anti-bot-sensitive, so the limiter
// defaults are deliberately conservative.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cbdcwatch/monitor/internal/config"
	"github.com/cbdcwatch/monitor/internal/resilience"
)

// maxBodyBytes caps how much of a response body is read; some bank
// portals serve very large PDFs.
const maxBodyBytes = 8 << 20

// Fetcher performs GETs with politeness controls.
type Fetcher struct {
	client    *http.Client
	userAgent string
	policy    resilience.Policy
	perHost   rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Fetcher from config.
func New(cfg config.FetchConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	perHost := rate.Limit(cfg.RatePerHost)
	if perHost <= 0 {
		perHost = 1
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		policy: resilience.Policy{
			MaxAttempts: attempts,
			OnRetry:     resilience.LogRetries("fetcher", "get"),
		},
		perHost:  perHost,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.perHost, f.burst)
		f.limiters[host] = l
	}
	return l
}

// Get fetches rawURL, honoring the per-host rate limit and retrying
// transient failures within the fixed budget.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}

	return resilience.Do(ctx, f.policy, func(ctx context.Context) ([]byte, error) {
		if err := f.limiter(u.Host).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		start := time.Now()
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read body %s", rawURL)
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("fetcher: %s returned status %d", rawURL, resp.StatusCode)
			if resilience.RetryableStatus(resp.StatusCode) {
				return nil, resilience.Transient(err, resp.StatusCode)
			}
			return nil, err
		}

		zap.L().Debug("fetcher: fetched",
			zap.String("url", rawURL),
			zap.Int("bytes", len(body)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return body, nil
	})
}
