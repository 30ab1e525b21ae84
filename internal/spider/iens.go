// Package spider wires the iens page builders into the crawl engine.
package spider

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/TableScout/internal/engine"
	"github.com/IshaanNene/TableScout/internal/observability"
	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/record"
	"github.com/IshaanNene/TableScout/internal/types"
)

// Iens routes fetched pages by request tag:
//
//	listing  -> detail and next-page links, plus listing entries when enabled
//	detail   -> restaurant record, plus comments and comment pages when enabled
//	comments -> comment records and further comment pages
type Iens struct {
	baseURL  string
	sections record.Section
	detail   *record.Builder
	comments *record.Builder
	listing  *record.Builder
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewIens creates the spider. baseURL is the site root, e.g.
// https://www.iens.nl.
func NewIens(baseURL string, sections record.Section, metrics *observability.Metrics, logger *slog.Logger) *Iens {
	return &Iens{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sections: sections,
		detail:   record.NewBuilder(sections&^record.SectionListing, logger),
		comments: record.NewBuilder(record.SectionComments, logger),
		listing:  record.NewBuilder(sections, logger),
		metrics:  metrics,
		logger:   logger.With("component", "iens_spider"),
	}
}

// SeedURL returns the listing page of a place.
func (s *Iens) SeedURL(place string) string {
	return s.baseURL + "/restaurant+" + url.PathEscape(strings.ToLower(strings.TrimSpace(place)))
}

// Register installs the tag callbacks on e.
func (s *Iens) Register(e *engine.Engine) {
	e.OnResponse(types.TagListing, s.HandleListing)
	e.OnResponse(types.TagDetail, s.HandleDetail)
	e.OnResponse(types.TagComments, s.HandleComments)
}

// Seed queues the listing page of every place.
func (s *Iens) Seed(e *engine.Engine, places []string) error {
	var errs []error
	for _, p := range places {
		if err := e.AddSeed(s.SeedURL(p), types.TagListing); err != nil {
			errs = append(errs, fmt.Errorf("seed %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Iens) wantsDetail() bool {
	return s.sections&(record.SectionInfo|record.SectionReviews|record.SectionComments) != 0
}

func (s *Iens) HandleListing(resp *types.Response) ([]types.Record, []*types.Request, error) {
	doc, err := parser.FromResponse(resp)
	if err != nil {
		return nil, nil, err
	}

	var records []types.Record
	if s.sections.Has(record.SectionListing) {
		for _, l := range s.listing.BuildListing(doc) {
			records = append(records, l)
		}
	}

	var follow []*types.Request
	if s.wantsDetail() {
		follow = append(follow, s.requests(doc, s.listing.DiscoverDetailLinks(doc), types.TagDetail, types.PriorityHigh)...)
	}
	follow = append(follow, s.requests(doc, s.listing.DiscoverPaginationLinks(doc), types.TagListing, types.PriorityNormal)...)

	s.logger.Debug("listing page", "url", doc.URL, "records", len(records), "follow", len(follow))
	return records, follow, nil
}

func (s *Iens) HandleDetail(resp *types.Response) ([]types.Record, []*types.Request, error) {
	doc, err := parser.FromResponse(resp)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.detail.Build(doc)
	if err != nil {
		return nil, nil, err
	}
	s.countIssues(res.Issues)

	follow := s.requests(doc, res.CommentPages, types.TagComments, types.PriorityNormal)
	return res.Records, follow, nil
}

func (s *Iens) HandleComments(resp *types.Response) ([]types.Record, []*types.Request, error) {
	doc, err := parser.FromResponse(resp)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.comments.Build(doc)
	if err != nil {
		return nil, nil, err
	}
	s.countIssues(res.Issues)

	follow := s.requests(doc, res.CommentPages, types.TagComments, types.PriorityNormal)
	return res.Records, follow, nil
}

// countIssues splits builder issues into rejected comments and field issues.
func (s *Iens) countIssues(issues []error) {
	for _, issue := range issues {
		var rej *types.RecordRejectedError
		if errors.As(issue, &rej) {
			s.metrics.IncRejected(string(rej.Kind))
			s.logger.Warn("record rejected", "kind", rej.Kind, "url", rej.URL, "reason", rej.Reason)
			continue
		}
		s.metrics.AddFieldIssues(1)
	}
}

func (s *Iens) requests(doc *parser.Document, hrefs []string, tag string, priority int) []*types.Request {
	var reqs []*types.Request
	for _, link := range doc.ResolveLinks(hrefs) {
		req, err := types.NewTaggedRequest(link, tag)
		if err != nil {
			s.logger.Debug("skipping link", "href", link, "error", err)
			continue
		}
		req.Priority = priority
		reqs = append(reqs, req)
	}
	return reqs
}
