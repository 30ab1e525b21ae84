package record

import (
	"github.com/IshaanNene/TableScout/internal/parser"
)

// DiscoverDetailLinks returns the restaurant page hrefs of a listing page,
// as written in the markup.
func (b *Builder) DiscoverDetailLinks(doc *parser.Document) []string {
	return b.ex.Extract(doc.Root, selDetailLinks)
}

// DiscoverPaginationLinks returns the next-page href of a listing page.
func (b *Builder) DiscoverPaginationLinks(doc *parser.Document) []string {
	return b.ex.Extract(doc.Root, selPaginationNext)
}

// DiscoverCommentPages returns the next-page href of the review list on a
// detail page.
func (b *Builder) DiscoverCommentPages(doc *parser.Document) []string {
	return b.ex.Extract(doc.Root, selCommentNextPage)
}
