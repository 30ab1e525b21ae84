package record

import (
	"github.com/IshaanNene/TableScout/internal/normalize"
	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/types"
)

// BuildListing extracts the short restaurant summaries of a listing page.
// Items without a name are skipped.
func (b *Builder) BuildListing(doc *parser.Document) []*types.ListingEntry {
	var entries []*types.ListingEntry
	for _, item := range b.ex.Nodes(doc.Root, selResultItem) {
		name, ok := b.ex.ExtractFirst(item, selItemName)
		if !ok {
			continue
		}

		e := &types.ListingEntry{
			Name: name,
			URL:  doc.URL,
		}
		if href, ok := b.ex.ExtractFirst(item, selItemLink); ok {
			if links := doc.ResolveLinks([]string{href}); len(links) > 0 {
				e.DetailURL = links[0]
				e.ID, _ = normalize.ParseEntityID(e.DetailURL)
			}
		}
		e.Address, _ = b.ex.ExtractFirst(item, selItemAddress)
		if text, ok := b.ex.ExtractFirst(item, selItemAvgPrice); ok {
			e.AvgPrice = normalize.ParsePrice(text)
		}
		if text, ok := b.ex.ExtractFirst(item, selItemReviews); ok {
			e.NrReviews = normalize.ParseCount(text)
		}
		if text, ok := b.ex.ExtractFirst(item, selItemRating); ok {
			rating, err := normalize.ParseRating(text)
			if err != nil {
				b.logger.Debug("field issue", "url", doc.URL, "field", "rating", "value", text, "error", err)
			}
			e.Rating = rating
		}
		styles := b.ex.Extract(item, selItemStyles)
		for i, s := range styles {
			styles[i] = normalize.CollapseText(s)
		}
		e.Styles = normalize.CleanTags(styles)

		entries = append(entries, e)
	}
	return entries
}
