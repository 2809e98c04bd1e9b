package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/integridade/internal/cache"
	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
	"github.com/ppiankov/integridade/internal/util"
	"github.com/ppiankov/integridade/internal/worker"
)

const maxFetchAttempts = 3

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

var (
	// ErrDisallowed is returned when robots.txt forbids a URL
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrTooLarge is returned when a response exceeds the configured size
	ErrTooLarge = errors.New("response exceeds size limit")
)

// StatusError reports a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Fetcher performs polite GET requests against open-data portals
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	log        *logger.Logger
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithRobots consults robots.txt before every request
func WithRobots(rc *util.RobotsChecker) Option {
	return func(f *Fetcher) { f.robots = rc }
}

// WithLimiter throttles requests per host
func WithLimiter(l *worker.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithCache stores small responses (API JSON, HTML pages) for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher creates a Fetcher. maxBytes <= 0 disables the size limit.
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, proxy model.ProxyConfig, opts ...Option) *Fetcher {
	client := util.NewHTTPClient(timeout, proxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after 5 redirects")
		}
		return nil
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		cache:      cache.Nop{},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchResult contains a fetched body and response metadata
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
	FromCache   bool
}

// Fetch retrieves rawURL into memory
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(f.limit(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("read body: %w (%d bytes)", ErrTooLarge, f.maxBytes)
	}

	return &FetchResult{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (connection errors, 429, 5xx)
// with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	return withRetry(ctx, f.log, rawURL, func() (*FetchResult, error) {
		return f.Fetch(ctx, rawURL)
	})
}

// FetchCached serves rawURL from the cache when present, otherwise fetches
// it with retries and stores the body
func (f *Fetcher) FetchCached(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.Key("GET", rawURL)
	if body, ok := f.cache.Get(key); ok {
		f.log.Debug("cache hit", "url", rawURL)
		return &FetchResult{Body: body, StatusCode: http.StatusOK, FinalURL: rawURL, FromCache: true}, nil
	}

	res, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Set(key, res.Body, f.cacheTTL); err != nil {
		f.log.Warn("cache write failed", "url", rawURL, "error", err)
	}
	return res, nil
}

// Download streams rawURL to path, retrying transient failures. The file
// only appears once the body has been fully written.
func (f *Fetcher) Download(ctx context.Context, rawURL, path string) (int64, error) {
	return withRetry(ctx, f.log, rawURL, func() (int64, error) {
		return f.download(ctx, rawURL, path)
	})
}

func (f *Fetcher) download(ctx context.Context, rawURL, path string) (int64, error) {
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, f.limit(resp.Body))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return 0, fmt.Errorf("read body: %w (%d bytes)", ErrTooLarge, f.maxBytes)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	return n, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	var delay time.Duration
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		delay = crawlDelay
	}
	if f.limiter != nil {
		if err := f.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/csv,application/json,text/html;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-PT,pt;q=0.9,en;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func (f *Fetcher) limit(r io.Reader) io.Reader {
	if f.maxBytes <= 0 {
		return r
	}
	return io.LimitReader(r, f.maxBytes+1)
}

func withRetry[T any](ctx context.Context, log *logger.Logger, rawURL string, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	backoff := time.Second
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		result, err = fn()
		if err == nil || !isRetryableFetchError(err) || attempt == maxFetchAttempts {
			return result, err
		}
		if ctx.Err() != nil {
			return result, err
		}
		log.Warn("transient fetch error, retrying", "url", rawURL, "attempt", attempt, "backoff", backoff, "error", err)
		fetchSleepFunc(backoff)
		backoff *= 2
	}
	return result, err
}

// isRetryableFetchError reports whether err is worth another attempt:
// connection failures, 429 and 5xx responses
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return strings.HasPrefix(err.Error(), "fetch:")
}
