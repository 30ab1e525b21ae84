package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/types"
)

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client      *http.Client
	maxBodySize int64
	logger      *slog.Logger
	userAgents  []string
	uaIndex     atomic.Int64
}

// NewHTTPFetcher creates an HTTP fetcher with a cookie jar and its own
// content decoding.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: max(cfg.Fetcher.MaxIdleConns/2, 1),
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decoded in decompressReader, brotli included
	}

	follow, maxRedirects := cfg.Fetcher.FollowRedirects, cfg.Fetcher.MaxRedirects
	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Crawler.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !follow {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client:      client,
		maxBodySize: cfg.Fetcher.MaxBodySize,
		logger:      logger.With("component", "http_fetcher"),
		userAgents:  cfg.Crawler.UserAgents,
	}, nil
}

// Fetch executes a GET and returns the decoded body. Status 429 and 5xx
// come back as retryable *types.FetchError values, other 4xx as permanent
// ones.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	httpReq.Header.Set("User-Agent", f.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	if err := statusError(req, httpResp); err != nil {
		return nil, err
	}

	reader, err := decompressReader(httpResp)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err}
	}
	defer reader.Close()

	var limited io.Reader = reader
	if f.maxBodySize > 0 {
		limited = io.LimitReader(reader, f.maxBodySize)
	}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err, Retryable: true}
	}

	resp := types.NewResponse(req, httpResp, body, duration)
	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)
	return resp, nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) Type() string {
	return "http"
}

func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "TableScout/" + config.Version
	}
	idx := (f.uaIndex.Add(1) - 1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

func statusError(req *types.Request, resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &types.FetchError{
			URL:        req.URLString(),
			StatusCode: code,
			Err:        fmt.Errorf("rate limited (retry after %s): %s", retryAfter, snippet(resp.Body)),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	case code >= 500:
		return &types.FetchError{
			URL:        req.URLString(),
			StatusCode: code,
			Err:        fmt.Errorf("HTTP %d: %s", code, snippet(resp.Body)),
			Retryable:  true,
		}
	case code >= 400:
		return &types.FetchError{
			URL:        req.URLString(),
			StatusCode: code,
			Err:        fmt.Errorf("HTTP %d", code),
		}
	}
	return nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

// decompressReader decodes gzip, deflate and brotli bodies.
func decompressReader(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// isRetryableError reports whether a transport error is worth another try.
// Cancellation and deadlines are not: the crawl is shutting down or the
// per-request budget is spent.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// parseRetryAfter reads seconds or an HTTP date, capped at two minutes.
func parseRetryAfter(header string) time.Duration {
	const (
		fallback = 5 * time.Second
		ceiling  = 2 * time.Minute
	)
	header = strings.TrimSpace(header)
	if header == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return min(time.Duration(secs)*time.Second, ceiling)
	}
	if t, err := http.ParseTime(header); err == nil {
		return min(max(time.Until(t), time.Second), ceiling)
	}
	return fallback
}
