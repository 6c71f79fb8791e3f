// Package probe performs the outbound checks against monitored sites:
// HTTP reachability, TLS certificate inspection, and on-page SEO signals.
// Probes are stateless; an unreachable target is a result, not an error.
package probe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"webwatch/internal/model"
)

const userAgent = "webwatch-probe/1.0"

// Config bounds each probe type. A single unreachable target must not
// stall a batch recheck, so every check carries its own timeout.
type Config struct {
	HealthTimeout time.Duration
	TLSTimeout    time.Duration
	SEOTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.HealthTimeout == 0 {
		c.HealthTimeout = 10 * time.Second
	}
	if c.TLSTimeout == 0 {
		c.TLSTimeout = 10 * time.Second
	}
	if c.SEOTimeout == 0 {
		c.SEOTimeout = 15 * time.Second
	}
}

// Checker runs probes against target URLs.
type Checker struct {
	cfg    Config
	client *http.Client
}

func NewChecker(cfg Config) *Checker {
	cfg.applyDefaults()
	// Timeouts are per request via context; the client carries none so the
	// longer SEO fetch is not cut short by the health check's limit.
	return &Checker{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Result is the combined snapshot of one probe run.
type Result struct {
	Status         string
	ResponseTimeMs *int64
	TLS            model.TLSInfo
	SEO            model.SEOInfo
}

// CheckHealth fetches the URL and reports whether it answered 200, with
// the observed latency. Any transport error or non-200 reads as down.
func (c *Checker) CheckHealth(ctx context.Context, url string) (bool, *int64) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, nil
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Milliseconds()
	return resp.StatusCode == http.StatusOK, &elapsed
}

// Probe runs the full battery against a URL. TLS and SEO details are only
// gathered for a site that answered the health check; TLS additionally
// requires an https URL. A failed health check downgrades the site to
// offline rather than surfacing an error.
func (c *Checker) Probe(ctx context.Context, url string) Result {
	up, latency := c.CheckHealth(ctx, url)
	if !up {
		return Result{
			Status:         model.StatusOffline,
			ResponseTimeMs: latency,
			SEO:            model.SEOInfo{Issues: []string{}},
		}
	}

	res := Result{
		Status:         model.StatusOnline,
		ResponseTimeMs: latency,
		SEO:            model.SEOInfo{Issues: []string{}},
	}

	if strings.HasPrefix(url, "https://") {
		res.TLS = c.CheckTLS(ctx, url)
	} else {
		msg := "not an HTTPS URL"
		res.TLS = model.TLSInfo{Error: &msg}
	}

	if seo, err := c.AnalyzeSEO(ctx, url); err == nil {
		res.SEO = seo
	}

	return res
}
