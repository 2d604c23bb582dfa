package finn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"finn-deal-finder/metrics"
	"finn-deal-finder/models"
	"finn-deal-finder/utils"
)

const (
	DefaultDelay   = 500 * time.Millisecond
	DefaultTimeout = 10 * time.Second

	maxPageBytes = 8 << 20
)

// PageSource retrieves the raw content for one QuerySpec.
type PageSource interface {
	FetchPage(ctx context.Context, spec QuerySpec) (string, error)
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// HTTPSource fetches pages with plain GET requests.
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSource creates an HTTPSource. The client timeout is a backstop; the
// Fetcher bounds each request through its context.
func NewHTTPSource(timeout time.Duration, userAgent string) *HTTPSource {
	return &HTTPSource{
		client:    &http.Client{Timeout: timeout + time.Second},
		userAgent: userAgent,
	}
}

// FetchPage implements PageSource.
func (s *HTTPSource) FetchPage(ctx context.Context, spec QuerySpec) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "nb-NO,nb;q=0.9,no;q=0.8,en-US;q=0.6,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchPolicy bounds how hard the Fetcher may hit the upstream service.
type FetchPolicy struct {
	// Delay is the minimum idle time between the end of one request and the
	// start of the next.
	Delay time.Duration
	// Timeout bounds a single request.
	Timeout time.Duration
}

// DefaultPolicy returns the 500ms / 10s policy.
func DefaultPolicy() FetchPolicy {
	return FetchPolicy{Delay: DefaultDelay, Timeout: DefaultTimeout}
}

// PageResult is the outcome of one page request. Exactly one of Content
// or Err is meaningful; Cancelled marks a search the caller abandoned.
type PageResult struct {
	Page      int
	URL       string
	Content   string
	Err       error
	Cancelled bool
}

// OK reports whether the page was retrieved.
func (r PageResult) OK() bool { return r.Err == nil }

// Fetcher walks a fixed list of QuerySpecs one page at a time. It is a
// finite sequence: once exhausted or stopped it yields nothing more.
type Fetcher struct {
	source PageSource
	specs  []QuerySpec
	policy FetchPolicy
	gap    *rate.Limiter
	logger *utils.Logger

	next int
	done bool
}

// NewFetcher creates a Fetcher over specs. Pacing state belongs to this
// Fetcher alone.
func NewFetcher(source PageSource, specs []QuerySpec, policy FetchPolicy, logger *utils.Logger) *Fetcher {
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTimeout
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Fetcher{
		source: source,
		specs:  specs,
		policy: policy,
		logger: logger,
	}
}

// Next requests the next page. It returns false once the sequence is
// exhausted, stopped or cancelled. ctx is checked before every request.
func (f *Fetcher) Next(ctx context.Context) (PageResult, bool) {
	if f.done || f.next >= len(f.specs) {
		f.done = true
		return PageResult{}, false
	}

	spec := f.specs[f.next]
	f.next++
	res := PageResult{Page: spec.Page, URL: spec.URL}

	if err := ctx.Err(); err != nil {
		return f.cancelled(res, err), true
	}
	if f.gap != nil {
		if err := f.gap.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return f.cancelled(res, ctx.Err()), true
			}
			// The deadline is closer than the required spacing.
			return f.cancelled(res, context.DeadlineExceeded), true
		}
	}

	f.logger.Debug("[finn] Fetching page %d: %s", spec.Page+1, spec.URL)
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, f.policy.Timeout)
	content, err := f.source.FetchPage(reqCtx, spec)
	cancel()
	f.startGap()

	if err != nil {
		if ctx.Err() != nil {
			return f.cancelled(res, ctx.Err()), true
		}
		failure := &models.FetchFailure{Page: spec.Page, URL: spec.URL, Err: err}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			failure.StatusCode = statusErr.Code
		}
		failure.Timeout = isTimeout(err)

		outcome := metrics.OutcomeFailed
		if failure.Timeout {
			outcome = metrics.OutcomeTimeout
		}
		metrics.PagesFetched.WithLabelValues(outcome).Inc()
		f.logger.Warn("[finn] %v", failure)

		res.Err = failure
		return res, true
	}

	metrics.PagesFetched.WithLabelValues(metrics.OutcomeOK).Inc()
	f.logger.Debug("[finn] Page %d fetched in %v (%d bytes)", spec.Page+1, time.Since(start), len(content))
	res.Content = content
	return res, true
}

// Stop ends the sequence early; later calls to Next return false.
func (f *Fetcher) Stop() {
	f.done = true
}

// Remaining reports how many pages have not been requested.
func (f *Fetcher) Remaining() int {
	if f.done {
		return 0
	}
	return len(f.specs) - f.next
}

// startGap spends the only token of a fresh limiter the moment a response
// arrives, so the next Wait blocks for a full Delay after it.
func (f *Fetcher) startGap() {
	if f.policy.Delay <= 0 {
		return
	}
	f.gap = rate.NewLimiter(rate.Every(f.policy.Delay), 1)
	f.gap.Allow()
}

func (f *Fetcher) cancelled(res PageResult, err error) PageResult {
	f.done = true
	metrics.PagesFetched.WithLabelValues(metrics.OutcomeCancelled).Inc()
	res.Err = err
	res.Cancelled = true
	return res
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
