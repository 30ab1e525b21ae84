package record

import (
	"github.com/IshaanNene/TableScout/internal/parser"
)

// Restaurant detail page.
var (
	selName        = parser.Sel(parser.Desc("h1", parser.HasClass("restaurantSummary-name")))
	selLatitude    = parser.Sel(parser.Desc("div", parser.HasClass("restaurant-map")), parser.Kid("div")).Attribute("data-gps-lat")
	selLongitude   = parser.Sel(parser.Desc("div", parser.HasClass("restaurant-map")), parser.Kid("div")).Attribute("data-gps-lng")
	selAddress     = parser.Sel(parser.Desc("div", parser.HasClass("restaurantSummary-address"))).WithText(parser.Lines)
	selAvgPrice    = parser.Sel(parser.Desc("div", parser.HasClass("avgPrice-price"))).WithText(parser.DeepText)
	selTags        = parser.Sel(parser.Desc("ul", parser.IDEquals("restaurantTagContainer")), parser.Desc(""))
	selDistinction = parser.Sel(parser.Desc("div", parser.HasClass("reviewSummary-distinction"))).WithText(parser.DeepTextBreaks)
	selRating      = parser.Sel(parser.Desc("span", parser.HasClass("rating-ratingValue")))
	selReviewCount = parser.Sel(parser.Desc("div", parser.HasClass("reviews-counter"))).WithText(parser.DeepText)
)

func rangeLabel(label string) parser.LabeledSelector {
	return parser.LabeledSelector{Tag: "span", Class: "reviewSummary-rangeLabel", Label: label}
}

func avgRatingLabel(label string) parser.LabeledSelector {
	return parser.LabeledSelector{Tag: "span", Class: "reviewSummary-avgRatingLabel", Label: label}
}

func reviewStatLabel(label string) parser.LabeledSelector {
	return parser.LabeledSelector{Tag: "div", Class: "reviewSummary-reviewStatLabel", Label: label}
}

// Review summary statistics, read by label.
var (
	lblRange10     = rangeLabel("10")
	lblRange9      = rangeLabel("9")
	lblRange8      = rangeLabel("8")
	lblRange7      = rangeLabel("7")
	lblRangeBelow7 = rangeLabel("< 7")

	lblFood    = avgRatingLabel("Eten")
	lblService = avgRatingLabel("Service")
	lblDecor   = avgRatingLabel("Decor")

	lblPriceQuality = reviewStatLabel("Prijs-kwaliteit")
	lblNoiseLevel   = reviewStatLabel("Geluidsniveau")
	lblWaitingTime  = reviewStatLabel("Wachttijd")
)

// Review blocks. Selectors below selReviewItem are scoped to one block.
var (
	selReviewItem      = parser.Sel(parser.Desc("div", parser.HasClass("reviewItem")))
	selCommentText     = parser.Sel(parser.Desc("div", parser.HasClass("reviewItem-customerComment"))).WithText(parser.DeepTextBreaks)
	selReviewer        = parser.Sel(parser.Desc("", parser.HasClass("reviewItem-profileName"))).WithText(parser.DeepTextBreaks)
	selCertified       = parser.Sel(parser.Desc("", parser.HasClass("reviewItem-certified")))
	selCommentRating   = parser.Sel(parser.Desc("span", parser.HasClass("rating-ratingValue")))
	selVisitDate       = parser.Sel(parser.Desc("", parser.HasClass("reviewItem-date"))).WithText(parser.DeepTextBreaks)
	selCommentNextPage = parser.Sel(parser.Desc("div", parser.HasClass("reviews-pagination")), parser.Desc("li", parser.HasClass("next")), parser.Kid("a")).Attribute("href")
)

// Listing page.
var (
	selResultItem = parser.Sel(parser.Desc("", parser.IDEquals("resultsContent")), parser.Kid("ul"), parser.Kid("li"))

	// scoped to one result item
	selItemName       = parser.Sel(parser.Desc("", parser.HasClass("resultItem-name")), parser.Kid("a")).WithText(parser.DeepTextBreaks)
	selItemLink       = parser.Sel(parser.Desc("", parser.HasClass("resultItem-name")), parser.Kid("a")).Attribute("href")
	selItemAddress    = parser.Sel(parser.Desc("", parser.HasClass("resultItem-address"))).WithText(parser.DeepTextBreaks)
	selItemAvgPrice   = parser.Sel(parser.Desc("", parser.HasClass("resultItem-averagePrice"))).WithText(parser.DeepText)
	selItemReviews    = parser.Sel(parser.Desc("", parser.HasClass("reviewsCount")), parser.Kid("a")).WithText(parser.DeepText)
	selItemRating     = parser.Sel(parser.Desc("", parser.HasClass("rating-ratingValue")))
	selItemStyles     = parser.Sel(parser.Desc("", parser.HasClass("restaurantTag")))
	selDetailLinks    = parser.Sel(parser.Desc("li", parser.HasClass("resultItem")), parser.Kid("div"), parser.Kid("h3"), parser.Kid("a")).Attribute("href")
	selPaginationNext = parser.Sel(parser.Desc("div", parser.HasClass("pagination")), parser.Kid("ul"), parser.Kid("li", parser.HasClass("next")), parser.Kid("a")).Attribute("href")
)
