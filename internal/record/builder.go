// Package record turns parsed iens pages into typed records. Builders are
// pure: the same document always yields the same records, and one page
// failing never affects another.
package record

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/TableScout/internal/normalize"
	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/types"
)

// Section selects which parts of a detail page are extracted.
type Section uint8

const (
	SectionInfo Section = 1 << iota
	SectionReviews
	SectionComments
	SectionListing

	SectionAll = SectionInfo | SectionReviews | SectionComments | SectionListing
)

var sectionNames = map[string]Section{
	"info":     SectionInfo,
	"reviews":  SectionReviews,
	"comments": SectionComments,
	"listing":  SectionListing,
}

// ParseSections converts section names into a Section set.
func ParseSections(names []string) (Section, error) {
	var s Section
	for _, n := range names {
		sec, ok := sectionNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown section %q", n)
		}
		s |= sec
	}
	return s, nil
}

// Has reports whether every section in o is enabled.
func (s Section) Has(o Section) bool { return s&o == o }

// Builder extracts records from documents.
type Builder struct {
	Sections Section

	ex     *parser.Extractor
	logger *slog.Logger
	now    func() time.Time
}

// NewBuilder creates a Builder for the given sections.
func NewBuilder(sections Section, logger *slog.Logger) *Builder {
	return &Builder{
		Sections: sections,
		ex:       parser.NewExtractor(logger),
		logger:   logger.With("component", "record_builder"),
		now:      time.Now,
	}
}

// RestaurantResult is a restaurant record plus the non-fatal problems found
// while building it.
type RestaurantResult struct {
	Restaurant *types.Restaurant
	Issues     []error
}

// Result holds everything extracted from one detail page.
type Result struct {
	Records []types.Record

	// CommentPages are unresolved hrefs of further review pages.
	CommentPages []string

	// Issues are field problems and rejected comments. None of them stop
	// the other records of the page from being emitted.
	Issues []error
}

// Build runs every enabled detail-page section. The returned error is a
// *types.RecordRejectedError when the page has no usable identity, in which
// case nothing is emitted for it.
func (b *Builder) Build(doc *parser.Document) (*Result, error) {
	res := &Result{}

	if b.Sections&(SectionInfo|SectionReviews|SectionComments) != 0 {
		kind := types.KindRestaurant
		if b.Sections&(SectionInfo|SectionReviews) == 0 {
			kind = types.KindComment
		}
		id, name, err := b.identity(doc, kind)
		if err != nil {
			return nil, err
		}

		if b.Sections&(SectionInfo|SectionReviews) != 0 {
			rr := b.restaurant(doc, id, name)
			res.Records = append(res.Records, rr.Restaurant)
			res.Issues = append(res.Issues, rr.Issues...)
		}
		if b.Sections.Has(SectionComments) {
			comments, issues := b.comments(doc, id, name)
			for _, c := range comments {
				res.Records = append(res.Records, c)
			}
			res.Issues = append(res.Issues, issues...)
			res.CommentPages = b.DiscoverCommentPages(doc)
		}
	}

	if b.Sections.Has(SectionListing) {
		for _, l := range b.BuildListing(doc) {
			res.Records = append(res.Records, l)
		}
	}

	b.logIssues(doc, res.Issues)
	return res, nil
}

// identity reads the two fields every record of a detail page depends on.
func (b *Builder) identity(doc *parser.Document, kind types.RecordKind) (int64, string, error) {
	id, err := normalize.ParseEntityID(doc.URL)
	if err != nil {
		return 0, "", types.Reject(kind, doc.URL, &types.FieldError{Field: "id", Value: doc.URL, Err: err})
	}
	name, ok := b.ex.ExtractFirst(doc.Root, selName)
	if !ok {
		return 0, "", types.Reject(kind, doc.URL, &types.FieldError{Field: "name", Err: types.ErrMissingField})
	}
	return id, name, nil
}

func (b *Builder) logIssues(doc *parser.Document, issues []error) {
	for _, issue := range issues {
		b.logger.Debug("field issue", "url", doc.URL, "error", issue)
	}
}
