package services

import (
	"context"
	"errors"
	"time"

	"finn-deal-finder/metrics"
	"finn-deal-finder/models"
	"finn-deal-finder/scraper/finn"
	"finn-deal-finder/utils"
)

// NoListingsWarning is added when a search completes with nothing to show.
const NoListingsWarning = "no listings matched the search"

// SearchService runs the complete search pipeline: build the query, fetch
// pages one at a time, extract listings, then score and sort them. It holds
// no per-search state, so one instance can serve concurrent searches.
type SearchService struct {
	builder   *finn.QueryBuilder
	source    finn.PageSource
	policy    finn.FetchPolicy
	extractor *finn.Extractor
	scorer    *DealScorer
	logger    *utils.Logger
}

func NewSearchService(
	builder *finn.QueryBuilder,
	source finn.PageSource,
	policy finn.FetchPolicy,
	extractor *finn.Extractor,
	logger *utils.Logger,
) *SearchService {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &SearchService{
		builder:   builder,
		source:    source,
		policy:    policy,
		extractor: extractor,
		scorer:    NewDealScorer(logger),
		logger:    logger,
	}
}

// Run executes one search. It returns a *models.PipelineError when the
// search could not run at all: a bad FilterConfig, an unreachable first
// page, or cancellation. Problems on later pages only add warnings.
func (s *SearchService) Run(ctx context.Context, cfg models.FilterConfig) (*models.SearchResult, error) {
	start := time.Now()
	durationLabel := "invalid"
	defer func() {
		metrics.SearchDuration.WithLabelValues(durationLabel).Observe(time.Since(start).Seconds())
	}()

	log := s.logger.With("category", string(cfg.Category), "keywords", cfg.Keywords)
	stage := models.StageValidating
	log.Debug("[pipeline] %s", stage)

	specs, err := s.builder.Build(cfg)
	if err != nil {
		metrics.Searches.WithLabelValues("invalid").Inc()
		log.Warn("[pipeline] Rejected search: %v", err)
		return nil, &models.PipelineError{Stage: stage, Reason: "invalid search", Err: err}
	}
	durationLabel = string(cfg.Category)

	stage = models.StageFetching
	log.Info("[pipeline] Searching up to %d pages", len(specs))

	var (
		warnings     []string
		listings     []models.Listing
		pagesFetched int
		seen         = utils.NewIDSet()
		fetcher      = finn.NewFetcher(s.source, specs, s.policy, log)
	)

	for {
		page, ok := fetcher.Next(ctx)
		if !ok {
			break
		}

		if page.Cancelled {
			metrics.Searches.WithLabelValues("cancelled").Inc()
			log.Info("[pipeline] Search cancelled before page %d", page.Page+1)
			return nil, &models.PipelineError{Stage: stage, Reason: "search cancelled", Warnings: warnings, Err: page.Err}
		}

		if !page.OK() {
			if page.Page == 0 {
				metrics.Searches.WithLabelValues("failed").Inc()
				log.Error("[pipeline] First page unreachable: %v", page.Err)
				return nil, &models.PipelineError{
					Stage:    stage,
					Reason:   "could not reach the search page",
					Warnings: warnings,
					Err:      page.Err,
				}
			}
			warnings = append(warnings, page.Err.Error())
			continue
		}
		pagesFetched++

		stage = models.StageExtracting
		extracted, report := s.extractor.Extract(page.Content)
		warnings = append(warnings, report.Warnings(page.Page)...)

		for _, l := range extracted {
			if !seen.Add(l.ID) {
				log.Debug("[pipeline] Skipping repeated listing %s on page %d", l.ID, page.Page+1)
				continue
			}
			listings = append(listings, l)
		}
		log.Info("[pipeline] Page %d: %d/%d cards extracted, %d listings so far",
			page.Page+1, report.Extracted, report.Fragments, len(listings))

		if report.Extracted == 0 {
			if remaining := fetcher.Remaining(); remaining > 0 {
				log.Debug("[pipeline] Page %d had no listings, skipping %d remaining pages", page.Page+1, remaining)
			}
			fetcher.Stop()
		}
		stage = models.StageFetching
	}

	stage = models.StageScoring
	log.Debug("[pipeline] %s %d listings", stage, len(listings))

	stats, scored := s.scorer.Score(listings)
	SortListings(scored, cfg.SortOrder)

	if len(scored) == 0 {
		warnings = append(warnings, NoListingsWarning)
	}
	if warnings == nil {
		warnings = []string{}
	}

	metrics.Searches.WithLabelValues("ok").Inc()
	log.Info("[pipeline] %s: %d listings from %d pages (%d warnings) in %v",
		models.StageDone, len(scored), pagesFetched, len(warnings), time.Since(start).Round(time.Millisecond))

	return &models.SearchResult{
		Listings:     scored,
		Stats:        stats,
		PagesFetched: pagesFetched,
		Warnings:     warnings,
		SearchURL:    specs[0].URL,
	}, nil
}

// IsValidationError reports whether err was caused by a bad FilterConfig,
// returning the field-level detail when it was.
func IsValidationError(err error) (*models.ValidationError, bool) {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
