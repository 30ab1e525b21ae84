package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
)

// SeenSet records which URLs a crawl has already queued. Pagination is
// followed by link presence, so the seen-set is what stops a crawl from
// cycling between pages that link to each other.
type SeenSet interface {
	// MarkIfNew marks rawURL as seen and reports whether it was new.
	MarkIfNew(ctx context.Context, rawURL string) (bool, error)
	Close() error
}

// Deduplicator is the in-process SeenSet.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates a Deduplicator sized for estimatedCapacity URLs.
func NewDeduplicator(estimatedCapacity int) *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

func (d *Deduplicator) MarkIfNew(_ context.Context, rawURL string) (bool, error) {
	hash := hashURL(CanonicalizeURL(rawURL))

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[hash]; ok {
		return false, nil
	}
	d.seen[hash] = struct{}{}
	return true, nil
}

// IsSeen reports whether rawURL, after canonicalization, was marked.
func (d *Deduplicator) IsSeen(rawURL string) bool {
	hash := hashURL(CanonicalizeURL(rawURL))

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[hash]
	return ok
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) Close() error { return nil }

// CanonicalizeURL normalizes a URL so that trivially different spellings
// of one page share a seen-set entry. Scheme and host are lowercased, the
// fragment and default port are dropped, query parameters are sorted and
// a trailing slash is removed.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	switch port := u.Port(); {
	case u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		u.Host = u.Hostname()
	}

	if u.RawQuery != "" {
		params := u.Query()
		var pairs []string
		for _, k := range slices.Sorted(maps.Keys(params)) {
			vals := slices.Clone(params[k])
			slices.Sort(vals)
			for _, v := range vals {
				pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// hashURL keeps seen-set keys a fixed size.
func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16])
}
