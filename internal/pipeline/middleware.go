package pipeline

import (
	"strings"

	"github.com/IshaanNene/TableScout/internal/normalize"
	"github.com/IshaanNene/TableScout/internal/types"
)

// RequiredFieldsMiddleware rejects restaurants without id or name and
// comments without text or restaurant id.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec types.Record) (types.Record, error) {
	missing := func(field string) error {
		return types.Reject(rec.Kind(), rec.SourceURL(), &types.FieldError{Field: field, Err: types.ErrMissingField})
	}

	switch r := rec.(type) {
	case *types.Restaurant:
		if r.ID <= 0 {
			return nil, missing("id")
		}
		if strings.TrimSpace(r.Name) == "" {
			return nil, missing("name")
		}
	case *types.Comment:
		if r.RestaurantID <= 0 {
			return nil, missing("restaurant_id")
		}
		if strings.TrimSpace(r.Text) == "" {
			return nil, missing("comment_text")
		}
	case *types.ListingEntry:
		if strings.TrimSpace(r.Name) == "" {
			return nil, missing("name")
		}
	}
	return rec, nil
}

// TextCleanMiddleware collapses whitespace in free-text fields. Entities
// are already decoded by the HTML parser.
type TextCleanMiddleware struct{}

func (m *TextCleanMiddleware) Name() string { return "text_clean" }

func (m *TextCleanMiddleware) Process(rec types.Record) (types.Record, error) {
	switch r := rec.(type) {
	case *types.Restaurant:
		r.Name = normalize.CollapseText(r.Name)
		if r.Reviews != nil {
			r.Reviews.Distinction = normalize.CollapseText(r.Reviews.Distinction)
		}
	case *types.Comment:
		r.RestaurantName = normalize.CollapseText(r.RestaurantName)
		r.Text = normalize.CollapseText(r.Text)
		r.Reviewer = normalize.CollapseText(r.Reviewer)
	case *types.ListingEntry:
		r.Name = normalize.CollapseText(r.Name)
		r.Address = normalize.CollapseText(r.Address)
	}
	return rec, nil
}

// TagFilterMiddleware drops blank tags from restaurant tags and listing
// styles.
type TagFilterMiddleware struct{}

func (m *TagFilterMiddleware) Name() string { return "tag_filter" }

func (m *TagFilterMiddleware) Process(rec types.Record) (types.Record, error) {
	switch r := rec.(type) {
	case *types.Restaurant:
		r.Tags = dropBlank(r.Tags)
	case *types.ListingEntry:
		r.Styles = dropBlank(r.Styles)
	}
	return rec, nil
}

func dropBlank(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// KindFilterMiddleware drops records whose kind is not listed. An empty
// list keeps everything.
type KindFilterMiddleware struct {
	Kinds []types.RecordKind
}

func (m *KindFilterMiddleware) Name() string { return "kind_filter" }

func (m *KindFilterMiddleware) Process(rec types.Record) (types.Record, error) {
	if len(m.Kinds) == 0 {
		return rec, nil
	}
	for _, k := range m.Kinds {
		if rec.Kind() == k {
			return rec, nil
		}
	}
	return nil, nil
}
