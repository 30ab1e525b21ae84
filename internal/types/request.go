package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Priority levels for request scheduling.
const (
	PriorityHighest = 0
	PriorityHigh    = 1
	PriorityNormal  = 2
	PriorityLow     = 3
	PriorityLowest  = 4
)

// Page tags route a response to the matching handler.
const (
	TagListing  = "listing"
	TagDetail   = "detail"
	TagComments = "comments"
)

// Request represents a page to be fetched by the crawler.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Depth is the crawl depth from the seed URL.
	Depth int

	// Priority controls scheduling order (lower = higher priority).
	Priority int

	MaxRetries int
	RetryCount int

	// Timeout overrides the global request timeout for this request.
	Timeout time.Duration

	// Meta stores arbitrary metadata attached to this request.
	Meta map[string]any

	// Tag says what kind of page this is: listing, detail or comments.
	Tag string

	// FetcherType specifies which fetcher to use: "http" or "browser".
	FetcherType string

	// ParentURL tracks which page this request was discovered on.
	ParentURL string

	CreatedAt time.Time
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w %q: not absolute", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:        u,
		Method:     http.MethodGet,
		Headers:    make(http.Header),
		Priority:   PriorityNormal,
		MaxRetries: 3,
		Meta:       make(map[string]any),
		CreatedAt:  time.Now(),
	}, nil
}

// NewTaggedRequest creates a request for a page of the given kind.
func NewTaggedRequest(rawURL, tag string) (*Request, error) {
	req, err := NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Tag = tag
	return req, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// Clone creates a deep copy of the request.
func (r *Request) Clone() *Request {
	clone := *r
	if r.URL != nil {
		u := *r.URL
		clone.URL = &u
	}
	clone.Headers = r.Headers.Clone()
	clone.Meta = make(map[string]any, len(r.Meta))
	for k, v := range r.Meta {
		clone.Meta[k] = v
	}
	return &clone
}
