package record

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/IshaanNene/TableScout/internal/normalize"
	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/types"
)

// BuildRestaurant extracts the restaurant record of a detail page. It fails
// only when the id or name is missing; every other problem leaves the field
// absent and is listed in the result's Issues.
func (b *Builder) BuildRestaurant(doc *parser.Document) (*RestaurantResult, error) {
	id, name, err := b.identity(doc, types.KindRestaurant)
	if err != nil {
		return nil, err
	}
	rr := b.restaurant(doc, id, name)
	b.logIssues(doc, rr.Issues)
	return rr, nil
}

func (b *Builder) restaurant(doc *parser.Document, id int64, name string) *RestaurantResult {
	fb := &fieldBuilder{ex: b.ex, root: doc.Root}
	r := &types.Restaurant{
		ID:        id,
		Name:      name,
		URL:       doc.URL,
		ScrapedAt: b.now().UTC(),
		Tags:      []string{},
	}

	if b.Sections.Has(SectionInfo) {
		r.Latitude = fb.float("latitude", selLatitude)
		r.Longitude = fb.float("longitude", selLongitude)
		r.Address = fb.address("address", selAddress)
		if text, ok := b.ex.ExtractFirst(doc.Root, selAvgPrice); ok {
			r.AvgPrice = normalize.ParsePrice(text)
		}
		r.Tags = normalize.CleanTags(b.ex.Extract(doc.Root, selTags))
	}

	if b.Sections.Has(SectionReviews) {
		rs := &types.ReviewSummary{}
		rs.Distinction, _ = b.ex.ExtractFirst(doc.Root, selDistinction)
		rs.Rating = fb.rating("rating", selRating)
		if text, ok := b.ex.ExtractFirst(doc.Root, selReviewCount); ok {
			rs.NrRatings = reviewTotal(text)
		}

		rs.Nr10Ratings = fb.labeledNumeric("nr_10_ratings", lblRange10)
		rs.Nr9Ratings = fb.labeledNumeric("nr_9_ratings", lblRange9)
		rs.Nr8Ratings = fb.labeledNumeric("nr_8_ratings", lblRange8)
		rs.Nr7Ratings = fb.labeledNumeric("nr_7_ratings", lblRange7)
		rs.NrBelow7 = fb.labeledNumeric("nr_below_7_ratings", lblRangeBelow7)

		rs.RatingFood = fb.labeledNumeric("rating_food", lblFood)
		rs.RatingService = fb.labeledNumeric("rating_service", lblService)
		rs.RatingDecor = fb.labeledNumeric("rating_decor", lblDecor)

		rs.PriceQuality = fb.labeledText(lblPriceQuality)
		rs.NoiseLevel = fb.labeledText(lblNoiseLevel)
		rs.WaitingTime = fb.labeledText(lblWaitingTime)
		r.Reviews = rs
	}

	return &RestaurantResult{Restaurant: r, Issues: fb.issues}
}

// reviewTotal reads the total from a counter such as "1 - 10 / 245 recensies".
func reviewTotal(text string) types.OptInt {
	if i := strings.LastIndex(text, "/"); i >= 0 {
		text = text[i+1:]
	}
	return normalize.ParseCount(text)
}

// fieldBuilder reads optional fields and collects the problems it meets.
type fieldBuilder struct {
	ex     *parser.Extractor
	root   *html.Node
	issues []error
}

func (f *fieldBuilder) fail(field, value string, err error) {
	f.issues = append(f.issues, &types.FieldError{Field: field, Value: value, Err: err})
}

func (f *fieldBuilder) float(field string, sel parser.Selector) types.OptFloat {
	text, ok := f.ex.ExtractFirst(f.root, sel)
	if !ok {
		return types.OptFloat{}
	}
	v, err := normalize.ParseFloat(text)
	if err != nil {
		f.fail(field, text, err)
	}
	return v
}

func (f *fieldBuilder) rating(field string, sel parser.Selector) types.OptFloat {
	text, ok := f.ex.ExtractFirst(f.root, sel)
	if !ok {
		return types.OptFloat{}
	}
	v, err := normalize.ParseRating(text)
	if err != nil {
		f.fail(field, text, err)
	}
	return v
}

func (f *fieldBuilder) address(field string, sel parser.Selector) types.Address {
	text, ok := f.ex.ExtractFirst(f.root, sel)
	if !ok {
		return types.Address{}
	}
	addr, err := normalize.ParseAddress(text)
	if err != nil {
		f.fail(field, "", err)
	}
	return addr
}

func (f *fieldBuilder) labeledNumeric(field string, ls parser.LabeledSelector) types.Numeric {
	text, ok := f.ex.ExtractLabeled(f.root, ls)
	if !ok {
		return types.Numeric{}
	}
	v, err := normalize.ParseNumeric(text)
	if err != nil {
		f.fail(field, text, err)
	}
	return v
}

func (f *fieldBuilder) labeledText(ls parser.LabeledSelector) types.OptString {
	text, _ := f.ex.ExtractLabeled(f.root, ls)
	return normalize.OptText(text)
}
