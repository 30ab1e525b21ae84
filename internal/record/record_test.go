package record

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2018, 1, 23, 12, 0, 0, 0, time.UTC)

const detailURL = "https://www.iens.nl/restaurant/42"

func loadDoc(t *testing.T, file, url string) *parser.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", file))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	doc, err := parser.Parse(url, f)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func inlineDoc(t *testing.T, url, body string) *parser.Document {
	t.Helper()
	doc, err := parser.Parse(url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func newTestBuilder(s Section) *Builder {
	b := NewBuilder(s, testLogger)
	b.now = func() time.Time { return fixedNow }
	return b
}

func TestBuildRestaurant(t *testing.T) {
	b := newTestBuilder(SectionInfo | SectionReviews)
	doc := loadDoc(t, "detail.html", detailURL)

	rr, err := b.BuildRestaurant(doc)
	if err != nil {
		t.Fatalf("BuildRestaurant: %v", err)
	}
	if len(rr.Issues) != 0 {
		t.Errorf("unexpected issues: %v", rr.Issues)
	}

	want := &types.Restaurant{
		ID:        42,
		Name:      "De Kas",
		Latitude:  types.SomeFloat(52.3539),
		Longitude: types.SomeFloat(4.9262),
		Address: types.Address{
			Street:      types.SomeString("Kamerlingh"),
			HouseNumber: types.SomeString("3"),
			PostalCode:  types.SomeString("1097 DE"),
			City:        types.SomeString("Amsterdam"),
			Country:     types.SomeString("Nederland"),
		},
		AvgPrice: types.SomeInt(35),
		Tags:     []string{"Italiaans", "Pizza"},
		Reviews: &types.ReviewSummary{
			Distinction:   "Uitstekend",
			Rating:        types.SomeFloat(9.1),
			NrRatings:     types.SomeInt(245),
			Nr10Ratings:   types.IntNumeric(120),
			Nr9Ratings:    types.IntNumeric(80),
			Nr8Ratings:    types.IntNumeric(30),
			Nr7Ratings:    types.IntNumeric(10),
			NrBelow7:      types.IntNumeric(5),
			RatingFood:    types.FloatNumeric(9.3),
			RatingService: types.IntNumeric(9),
			RatingDecor:   types.FloatNumeric(8.8),
			PriceQuality:  types.SomeString("Goed"),
			NoiseLevel:    types.SomeString("Rustig"),
			WaitingTime:   types.SomeString("Kort"),
		},
		URL:       detailURL,
		ScrapedAt: fixedNow,
	}
	if diff := cmp.Diff(want, rr.Restaurant); diff != "" {
		t.Errorf("restaurant mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRestaurantDeterministic(t *testing.T) {
	b := newTestBuilder(SectionInfo | SectionReviews)
	doc := loadDoc(t, "detail.html", detailURL)

	first, err := b.BuildRestaurant(doc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.BuildRestaurant(doc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first.Restaurant, second.Restaurant); diff != "" {
		t.Errorf("builder is not deterministic:\n%s", diff)
	}
}

func TestBuildRestaurantMissingFields(t *testing.T) {
	b := newTestBuilder(SectionInfo | SectionReviews)
	doc := inlineDoc(t, "https://www.iens.nl/restaurant/7?ref=x", `<html><body>
		<h1 class="restaurantSummary-name">Kaal</h1>
	</body></html>`)

	rr, err := b.BuildRestaurant(doc)
	if err != nil {
		t.Fatalf("BuildRestaurant: %v", err)
	}
	r := rr.Restaurant
	if r.ID != 7 || r.Name != "Kaal" {
		t.Errorf("identity = %d %q", r.ID, r.Name)
	}
	if r.Latitude.Valid || r.AvgPrice.Valid || r.Address.City.Valid {
		t.Errorf("expected absent info fields, got %+v", r)
	}
	if r.Reviews == nil || r.Reviews.Rating.Valid || r.Reviews.Nr10Ratings.Valid || r.Reviews.Distinction != "" {
		t.Errorf("expected empty review summary, got %+v", r.Reviews)
	}
	if len(r.Tags) != 0 {
		t.Errorf("expected no tags, got %v", r.Tags)
	}
	if row := r.FlatRow(); row[9] != "-1" || row[11] != "-1" {
		t.Errorf("absent values must be -1 on the wire, got %v", row)
	}
}

func TestBuildRestaurantMalformedDegrades(t *testing.T) {
	b := newTestBuilder(SectionInfo | SectionReviews)
	doc := inlineDoc(t, detailURL, `<html><body>
		<h1 class="restaurantSummary-name">Rommel</h1>
		<div class="restaurant-map"><div data-gps-lat="noord" data-gps-lng="4.9"></div></div>
		<div class="restaurantSummary-address">Rommel<br>Dam 1<br>Amsterdam</div>
		<span class="rating-ratingValue">goed</span>
	</body></html>`)

	rr, err := b.BuildRestaurant(doc)
	if err != nil {
		t.Fatalf("BuildRestaurant: %v", err)
	}
	r := rr.Restaurant
	if r.Latitude.Valid {
		t.Error("malformed latitude should be absent")
	}
	if r.Longitude != types.SomeFloat(4.9) {
		t.Errorf("longitude = %+v", r.Longitude)
	}
	if r.Address != (types.Address{}) {
		t.Errorf("mismatched address should be absent, got %+v", r.Address)
	}
	if r.Reviews.Rating.Valid {
		t.Error("malformed rating should be absent")
	}

	if len(rr.Issues) != 3 {
		t.Fatalf("expected 3 issues, got %v", rr.Issues)
	}
	var fe *types.FieldError
	if !errors.As(rr.Issues[0], &fe) || fe.Field != "latitude" || !errors.Is(fe, types.ErrMalformedValue) {
		t.Errorf("issue 0 = %v", rr.Issues[0])
	}
	if !errors.Is(rr.Issues[1], types.ErrStructuralMismatch) {
		t.Errorf("issue 1 = %v", rr.Issues[1])
	}
	if !errors.Is(rr.Issues[2], types.ErrMalformedValue) {
		t.Errorf("issue 2 = %v", rr.Issues[2])
	}
}

func TestBuildRestaurantNonFiniteCoordinates(t *testing.T) {
	b := newTestBuilder(SectionInfo)
	doc := inlineDoc(t, detailURL, `<html><body>
		<h1 class="restaurantSummary-name">Rommel</h1>
		<div class="restaurant-map"><div data-gps-lat="NaN" data-gps-lng="Infinity"></div></div>
	</body></html>`)

	rr, err := b.BuildRestaurant(doc)
	if err != nil {
		t.Fatalf("BuildRestaurant: %v", err)
	}
	if rr.Restaurant.Latitude.Valid || rr.Restaurant.Longitude.Valid {
		t.Errorf("coordinates = %+v, %+v, want absent", rr.Restaurant.Latitude, rr.Restaurant.Longitude)
	}
	if len(rr.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", rr.Issues)
	}
	for _, issue := range rr.Issues {
		if !errors.Is(issue, types.ErrMalformedValue) {
			t.Errorf("issue %v should wrap ErrMalformedValue", issue)
		}
	}
	if _, err := json.Marshal(rr.Restaurant); err != nil {
		t.Errorf("restaurant does not marshal: %v", err)
	}
}

func TestBuildRestaurantRejected(t *testing.T) {
	b := newTestBuilder(SectionInfo)

	tests := []struct {
		name  string
		url   string
		body  string
		field string
	}{
		{"no id", "https://www.iens.nl/restaurant+amsterdam", `<h1 class="restaurantSummary-name">X</h1>`, "id"},
		{"no name", detailURL, `<h1 class="other">X</h1>`, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.BuildRestaurant(inlineDoc(t, tt.url, tt.body))
			if !errors.Is(err, types.ErrRecordRejected) {
				t.Fatalf("expected rejection, got %v", err)
			}
			var fe *types.FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestBuildRestaurantInfoOnly(t *testing.T) {
	b := newTestBuilder(SectionInfo)
	rr, err := b.BuildRestaurant(loadDoc(t, "detail.html", detailURL))
	if err != nil {
		t.Fatal(err)
	}
	if rr.Restaurant.Reviews != nil {
		t.Error("review summary should be omitted without the reviews section")
	}
	if !rr.Restaurant.AvgPrice.Valid {
		t.Error("info fields should be present")
	}
}

func TestBuildComments(t *testing.T) {
	b := newTestBuilder(SectionComments)
	comments, rejected := b.BuildComments(loadDoc(t, "detail.html", detailURL))

	want := []*types.Comment{
		{
			RestaurantID:   42,
			RestaurantName: "De Kas",
			Text:           "Heerlijk gegeten. Zeker een aanrader!",
			Reviewer:       "Jan",
			VisitDate:      types.SomeString("2018-03-03"),
			Certified:      true,
			Rating:         types.SomeFloat(9.5),
			URL:            detailURL,
		},
		{
			RestaurantID:   42,
			RestaurantName: "De Kas",
			Text:           "Prima.",
			Reviewer:       "Klaas",
			VisitDate:      types.SomeString("2017-10-12"),
			Rating:         types.SomeFloat(7),
			URL:            detailURL,
		},
	}
	if diff := cmp.Diff(want, comments); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}

	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected comments, got %v", rejected)
	}
	fields := []string{"rating", "visit_date"}
	for i, err := range rejected {
		if !errors.Is(err, types.ErrRecordRejected) || !errors.Is(err, types.ErrMalformedValue) {
			t.Errorf("rejection %d = %v", i, err)
		}
		var fe *types.FieldError
		if !errors.As(err, &fe) || fe.Field != fields[i] {
			t.Errorf("rejection %d field = %v, want %s", i, fe, fields[i])
		}
	}
}

func TestBuildCommentsWithoutIdentity(t *testing.T) {
	b := newTestBuilder(SectionComments)
	comments, errs := b.BuildComments(inlineDoc(t, detailURL, `<div class="reviewItem">
		<div class="reviewItem-customerComment">Lekker</div></div>`))
	if len(comments) != 0 {
		t.Errorf("expected no comments, got %d", len(comments))
	}
	if len(errs) != 1 || !errors.Is(errs[0], types.ErrRecordRejected) {
		t.Errorf("expected one page rejection, got %v", errs)
	}
}

func TestBuild(t *testing.T) {
	b := newTestBuilder(SectionInfo | SectionReviews | SectionComments)
	res, err := b.Build(loadDoc(t, "detail.html", detailURL))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var kinds []types.RecordKind
	for _, r := range res.Records {
		kinds = append(kinds, r.Kind())
	}
	wantKinds := []types.RecordKind{types.KindRestaurant, types.KindComment, types.KindComment}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Errorf("record kinds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/restaurant/42?page=2"}, res.CommentPages); diff != "" {
		t.Errorf("comment pages mismatch (-want +got):\n%s", diff)
	}
	if len(res.Issues) != 2 {
		t.Errorf("expected 2 issues, got %v", res.Issues)
	}
}

func TestBuildRejectsPageWithoutIdentity(t *testing.T) {
	b := newTestBuilder(SectionInfo | SectionComments)
	_, err := b.Build(inlineDoc(t, "https://www.iens.nl/over-ons", `<h1 class="restaurantSummary-name">X</h1>`))
	var rej *types.RecordRejectedError
	if !errors.As(err, &rej) || rej.Kind != types.KindRestaurant {
		t.Errorf("expected restaurant rejection, got %v", err)
	}
}

func TestBuildListing(t *testing.T) {
	b := newTestBuilder(SectionListing)
	doc := loadDoc(t, "listing.html", "https://www.iens.nl/restaurant+amsterdam?page=2")

	got := b.BuildListing(doc)
	want := []*types.ListingEntry{
		{
			ID:        42,
			Name:      "De Kas",
			Address:   "Kamerlingh 3, Amsterdam",
			AvgPrice:  types.SomeInt(35),
			Rating:    types.SomeFloat(9.1),
			NrReviews: types.SomeInt(245),
			Styles:    []string{"Italiaans", "Pizza"},
			DetailURL: "https://www.iens.nl/restaurant/42",
			URL:       "https://www.iens.nl/restaurant+amsterdam?page=2",
		},
		{
			ID:        77,
			Name:      "Bar Bistro",
			Address:   "Dam 1, Amsterdam",
			Styles:    []string{},
			DetailURL: "https://www.iens.nl/restaurant/77",
			URL:       "https://www.iens.nl/restaurant+amsterdam?page=2",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverLinks(t *testing.T) {
	b := newTestBuilder(SectionInfo)
	listing := loadDoc(t, "listing.html", "https://www.iens.nl/restaurant+amsterdam")

	if diff := cmp.Diff([]string{"/restaurant/42", "https://www.iens.nl/restaurant/77"}, b.DiscoverDetailLinks(listing)); diff != "" {
		t.Errorf("detail links mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/restaurant+amsterdam?page=3"}, b.DiscoverPaginationLinks(listing)); diff != "" {
		t.Errorf("pagination links mismatch (-want +got):\n%s", diff)
	}

	detail := loadDoc(t, "detail.html", detailURL)
	if got := b.DiscoverPaginationLinks(detail); len(got) != 0 {
		t.Errorf("detail page has no listing pagination, got %v", got)
	}
	if got := b.DiscoverDetailLinks(detail); len(got) != 0 {
		t.Errorf("detail page has no detail links, got %v", got)
	}
}

func TestParseSections(t *testing.T) {
	s, err := ParseSections([]string{"info", "Comments"})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Has(SectionInfo) || !s.Has(SectionComments) || s.Has(SectionReviews) {
		t.Errorf("sections = %b", s)
	}
	if _, err := ParseSections([]string{"menu"}); err == nil {
		t.Error("expected error for unknown section")
	}
}
