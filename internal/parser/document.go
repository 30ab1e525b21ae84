package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/TableScout/internal/types"
)

// Document is a parsed page together with the URL it was fetched from.
type Document struct {
	URL  string
	Root *html.Node
}

// Parse reads an HTML page.
func Parse(pageURL string, r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}
	return FromGoquery(pageURL, doc)
}

// FromGoquery wraps an already parsed goquery document.
func FromGoquery(pageURL string, doc *goquery.Document) (*Document, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, &types.ParseError{URL: pageURL, Err: types.ErrEmptyResponse}
	}
	return &Document{URL: pageURL, Root: doc.Nodes[0]}, nil
}

// FromResponse parses a fetched response.
func FromResponse(resp *types.Response) (*Document, error) {
	if len(resp.Body) == 0 {
		return nil, &types.ParseError{URL: resp.PageURL(), Err: types.ErrEmptyResponse}
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	return FromGoquery(resp.PageURL(), doc)
}

// ResolveLinks turns hrefs found on the document into absolute http(s) URLs,
// dropping fragments, non-web schemes and duplicates. Order is kept.
func (d *Document) ResolveLinks(hrefs []string) []string {
	base, err := url.Parse(d.URL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			continue
		}

		parsed, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		resolved.Fragment = ""

		abs := resolved.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	}
	return links
}

func (d *Document) String() string {
	return fmt.Sprintf("document(%s)", d.URL)
}
