package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Extractor evaluates typed selectors against parsed HTML trees. It holds
// no per-document state and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
	cache  sync.Map // xpath string -> compiled
}

type compiled struct {
	expr *xpath.Expr
	err  error
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// Compile compiles the selector to an XPath expression, caching the result.
func (e *Extractor) Compile(sel Selector) (*xpath.Expr, error) {
	src := sel.XPath()
	if c, ok := e.cache.Load(src); ok {
		return c.(*compiled).expr, c.(*compiled).err
	}

	expr, err := xpath.Compile(src)
	if err != nil {
		err = fmt.Errorf("compile selector %s: %w", src, err)
	}
	c, loaded := e.cache.LoadOrStore(src, &compiled{expr: expr, err: err})
	if err != nil && !loaded {
		e.logger.Error("invalid selector", "xpath", src, "error", err)
	}
	return c.(*compiled).expr, c.(*compiled).err
}

// Nodes returns every element matched by sel below n, in document order.
func (e *Extractor) Nodes(n *html.Node, sel Selector) []*html.Node {
	if n == nil {
		return nil
	}
	expr, err := e.Compile(sel)
	if err != nil {
		return nil
	}
	return htmlquery.QuerySelectorAll(n, expr)
}

// Extract returns the values of every match, in document order. Matches
// whose value is blank are skipped.
func (e *Extractor) Extract(n *html.Node, sel Selector) []string {
	var values []string
	for _, m := range e.Nodes(n, sel) {
		if v := value(m, sel); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// ExtractFirst returns the first non-blank value matched by sel.
func (e *Extractor) ExtractFirst(n *html.Node, sel Selector) (string, bool) {
	for _, m := range e.Nodes(n, sel) {
		if v := value(m, sel); v != "" {
			return v, true
		}
	}
	return "", false
}

// ExtractLabeled finds the element carrying the label and returns the first
// text that follows it in document order.
func (e *Extractor) ExtractLabeled(n *html.Node, ls LabeledSelector) (string, bool) {
	anchors := e.Nodes(n, ls.Anchor())
	if len(anchors) == 0 {
		return "", false
	}
	return followingText(anchors[0])
}

// Present reports whether sel matches at least one element.
func (e *Extractor) Present(n *html.Node, sel Selector) bool {
	if n == nil {
		return false
	}
	expr, err := e.Compile(sel)
	if err != nil {
		return false
	}
	return htmlquery.QuerySelector(n, expr) != nil
}

func value(n *html.Node, sel Selector) string {
	if sel.Attr != "" {
		return strings.TrimSpace(htmlquery.SelectAttr(n, sel.Attr))
	}
	return nodeText(n, sel.Text)
}
