package types

import (
	"strconv"
	"time"
)

// RecordKind identifies the shape of an emitted record.
type RecordKind string

const (
	KindRestaurant RecordKind = "restaurant"
	KindComment    RecordKind = "comment"
	KindListing    RecordKind = "listing"
)

// Record is a single structured row extracted from one document.
type Record interface {
	// Kind returns the record shape.
	Kind() RecordKind

	// EntityID returns the restaurant id the record belongs to, or 0 when unknown.
	EntityID() int64

	// SourceURL returns the page the record was extracted from.
	SourceURL() string
}

// Address is the postal address printed on a restaurant page.
type Address struct {
	Street      OptString `json:"street"`
	HouseNumber OptString `json:"house_number"`
	PostalCode  OptString `json:"postal_code"`
	City        OptString `json:"city"`
	Country     OptString `json:"country"`
}

// ReviewSummary holds the aggregated review statistics of a restaurant.
type ReviewSummary struct {
	Distinction   string    `json:"distinction"`
	Rating        OptFloat  `json:"rating"`
	NrRatings     OptInt    `json:"nr_ratings"`
	Nr10Ratings   Numeric   `json:"nr_10_ratings"`
	Nr9Ratings    Numeric   `json:"nr_9_ratings"`
	Nr8Ratings    Numeric   `json:"nr_8_ratings"`
	Nr7Ratings    Numeric   `json:"nr_7_ratings"`
	NrBelow7      Numeric   `json:"nr_below_7_ratings"`
	RatingFood    Numeric   `json:"rating_food"`
	RatingService Numeric   `json:"rating_service"`
	RatingDecor   Numeric   `json:"rating_decor"`
	PriceQuality  OptString `json:"price_quality"`
	NoiseLevel    OptString `json:"noise_level"`
	WaitingTime   OptString `json:"waiting_time"`
}

// Restaurant is one restaurant detail page turned into a record.
type Restaurant struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Latitude  OptFloat       `json:"latitude"`
	Longitude OptFloat       `json:"longitude"`
	Address   Address        `json:"address"`
	AvgPrice  OptInt         `json:"avg_price"`
	Tags      []string       `json:"tags"`
	Reviews   *ReviewSummary `json:"review_summary,omitempty"`
	URL       string         `json:"url"`
	ScrapedAt time.Time      `json:"scraped_at"`
}

func (r *Restaurant) Kind() RecordKind  { return KindRestaurant }
func (r *Restaurant) EntityID() int64   { return r.ID }
func (r *Restaurant) SourceURL() string { return r.URL }

// RestaurantColumns is the flat column layout used by tabular stores.
// The tag column is not included; tabular stores add one row per tag.
var RestaurantColumns = []string{
	"id", "name", "latitude", "longitude",
	"street", "house_number", "postal_code", "city", "country",
	"avg_price",
	"distinction", "rating", "nr_ratings",
	"nr_10_ratings", "nr_9_ratings", "nr_8_ratings", "nr_7_ratings", "nr_below_7_ratings",
	"rating_food", "rating_service", "rating_decor",
	"price_quality", "noise_level", "waiting_time",
}

// FlatRow renders the restaurant in RestaurantColumns order, with absent
// values written as the sentinel.
func (r *Restaurant) FlatRow() []string {
	rs := r.Reviews
	if rs == nil {
		rs = &ReviewSummary{}
	}
	return []string{
		strconv.FormatInt(r.ID, 10), r.Name, r.Latitude.String(), r.Longitude.String(),
		r.Address.Street.String(), r.Address.HouseNumber.String(), r.Address.PostalCode.String(),
		r.Address.City.String(), r.Address.Country.String(),
		r.AvgPrice.String(),
		rs.Distinction, rs.Rating.String(), rs.NrRatings.String(),
		rs.Nr10Ratings.String(), rs.Nr9Ratings.String(), rs.Nr8Ratings.String(),
		rs.Nr7Ratings.String(), rs.NrBelow7.String(),
		rs.RatingFood.String(), rs.RatingService.String(), rs.RatingDecor.String(),
		rs.PriceQuality.String(), rs.NoiseLevel.String(), rs.WaitingTime.String(),
	}
}

// TagColumn names the tag column that follows RestaurantColumns in
// tabular stores.
const TagColumn = "tags"

// TagRows fans the restaurant out into one FlatRow per tag, each followed by
// its tag. A restaurant without tags still yields one row, with an empty tag.
func (r *Restaurant) TagRows() [][]string {
	base := r.FlatRow()
	if len(r.Tags) == 0 {
		return [][]string{append(base, "")}
	}
	rows := make([][]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		row := make([]string, 0, len(base)+1)
		rows = append(rows, append(append(row, base...), tag))
	}
	return rows
}

// Comment is one reviewer comment on a restaurant page.
type Comment struct {
	RestaurantID   int64     `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name"`
	Text           string    `json:"comment_text"`
	Reviewer       string    `json:"reviewer"`
	VisitDate      OptString `json:"visit_date"`
	Certified      bool      `json:"certified"`
	Rating         OptFloat  `json:"rating"`
	URL            string    `json:"url"`
}

func (c *Comment) Kind() RecordKind  { return KindComment }
func (c *Comment) EntityID() int64   { return c.RestaurantID }
func (c *Comment) SourceURL() string { return c.URL }

// CommentColumns is the flat column layout of comments in tabular stores.
var CommentColumns = []string{
	"restaurant_id", "restaurant_name", "comment_text", "reviewer",
	"visit_date", "certified", "rating", "url",
}

// FlatRow renders the comment in CommentColumns order.
func (c *Comment) FlatRow() []string {
	return []string{
		strconv.FormatInt(c.RestaurantID, 10), c.RestaurantName, c.Text, c.Reviewer,
		c.VisitDate.String(), strconv.FormatBool(c.Certified), c.Rating.String(), c.URL,
	}
}

// ListingEntry is the short summary of a restaurant shown on a listing page.
type ListingEntry struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	AvgPrice  OptInt   `json:"avg_price"`
	Rating    OptFloat `json:"rating"`
	NrReviews OptInt   `json:"nr_reviews"`
	Styles    []string `json:"styles"`
	DetailURL string   `json:"detail_url"`
	URL       string   `json:"url"`
}

func (l *ListingEntry) Kind() RecordKind  { return KindListing }
func (l *ListingEntry) EntityID() int64   { return l.ID }
func (l *ListingEntry) SourceURL() string { return l.URL }
