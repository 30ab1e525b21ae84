package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CollapseSpace replaces every whitespace run, line breaks included, with a
// single space and trims the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// nodeText reads the text of n according to mode. The result is trimmed.
func nodeText(n *html.Node, mode TextMode) string {
	switch mode {
	case OwnText:
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	case DeepTextBreaks:
		var b strings.Builder
		writeText(&b, n, " ", false)
		return CollapseSpace(b.String())
	case Lines:
		var b strings.Builder
		writeText(&b, n, "\n", true)
		return strings.TrimSpace(b.String())
	default:
		var b strings.Builder
		writeText(&b, n, "", false)
		return strings.TrimSpace(b.String())
	}
}

func writeText(b *strings.Builder, n *html.Node, br string, blocks bool) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Br:
			b.WriteString(br)
			return
		}
	}
	block := blocks && isBlock(n)
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c, br, blocks)
	}
	if block {
		b.WriteString("\n")
	}
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Div, atom.P, atom.Li, atom.Address, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4:
		return true
	}
	return false
}

// followingText returns the first non-blank text node after n's subtree in
// document order.
func followingText(n *html.Node) (string, bool) {
	for cur := nextAfterSubtree(n); cur != nil; cur = nextInOrder(cur) {
		if cur.Type != html.TextNode || insideRaw(cur) {
			continue
		}
		if t := strings.TrimSpace(cur.Data); t != "" {
			return t, true
		}
	}
	return "", false
}

func nextInOrder(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	return nextAfterSubtree(n)
}

func nextAfterSubtree(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

func insideRaw(n *html.Node) bool {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return false
	}
	return p.DataAtom == atom.Script || p.DataAtom == atom.Style
}
