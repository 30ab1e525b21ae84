package record

import (
	"golang.org/x/net/html"

	"github.com/IshaanNene/TableScout/internal/normalize"
	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/types"
)

// BuildComments extracts every review block of a detail page in document
// order. A block with a malformed rating or visit date is rejected on its
// own; the returned errors list those rejections. When the page itself has
// no id or name, no comments are returned and the only error is the
// page-level rejection.
func (b *Builder) BuildComments(doc *parser.Document) ([]*types.Comment, []error) {
	id, name, err := b.identity(doc, types.KindComment)
	if err != nil {
		return nil, []error{err}
	}
	comments, issues := b.comments(doc, id, name)
	b.logIssues(doc, issues)
	return comments, issues
}

func (b *Builder) comments(doc *parser.Document, id int64, name string) ([]*types.Comment, []error) {
	var (
		comments []*types.Comment
		rejected []error
	)
	for _, block := range b.ex.Nodes(doc.Root, selReviewItem) {
		c, err := b.comment(block, doc.URL)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		c.RestaurantID = id
		c.RestaurantName = name
		comments = append(comments, c)
	}
	return comments, rejected
}

func (b *Builder) comment(block *html.Node, pageURL string) (*types.Comment, error) {
	text, _ := b.ex.ExtractFirst(block, selCommentText)
	reviewer, _ := b.ex.ExtractFirst(block, selReviewer)

	c := &types.Comment{
		Text:      normalize.CollapseText(text),
		Reviewer:  reviewer,
		Certified: b.ex.Present(block, selCertified),
		URL:       pageURL,
	}

	if raw, ok := b.ex.ExtractFirst(block, selCommentRating); ok {
		rating, err := normalize.ParseRating(raw)
		if err != nil {
			return nil, types.Reject(types.KindComment, pageURL, &types.FieldError{Field: "rating", Value: raw, Err: err})
		}
		c.Rating = rating
	}

	if raw, ok := b.ex.ExtractFirst(block, selVisitDate); ok {
		date, err := normalize.ParseVisitDate(raw)
		if err != nil {
			return nil, types.Reject(types.KindComment, pageURL, &types.FieldError{Field: "visit_date", Value: raw, Err: err})
		}
		if date != "" {
			c.VisitDate = types.SomeString(date)
		}
	}

	return c, nil
}
