// Package fetch implements PaperFetcher: pull recent papers from arXiv (or
// a Supabase mirror), de-duplicate against the cross-run SeenSet, and
// produce the canonical paper set a run's retrievers operate over.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	dprerrors "github.com/Aman-CERP/dpr-pipeline/internal/errors"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// DefaultMaxResultsPerQuery caps a single arXiv query's result page.
const DefaultMaxResultsPerQuery = 100

// DefaultQuerySpacing is the mandatory gap between successive arXiv
// searches, shared by every query the fetcher issues in one run.
const DefaultQuerySpacing = 3 * time.Second

// ArxivSearcher is the subset of ArxivClient the fetcher depends on,
// narrowed for testability.
type ArxivSearcher interface {
	Search(ctx context.Context, queryText string, maxResults int) ([]model.Paper, error)
}

// WindowReader is the subset of SupabaseClient the fetcher depends on when
// reading from the mirror instead of arXiv directly.
type WindowReader interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]model.Paper, error)
}

// Config tunes fetch windowing and source preference.
type Config struct {
	DaysWindow         int
	PreferSupabaseRead bool
	MaxResultsPerQuery int
	QuerySpacing       time.Duration
}

// WithDefaults fills in zero-valued fields with spec defaults.
func (c Config) WithDefaults() Config {
	if c.MaxResultsPerQuery <= 0 {
		c.MaxResultsPerQuery = DefaultMaxResultsPerQuery
	}
	if c.QuerySpacing <= 0 {
		c.QuerySpacing = DefaultQuerySpacing
	}
	return c
}

// Fetcher runs PaperFetcher against either a Supabase mirror or arXiv
// directly, de-duplicating against a SeenSet.
type Fetcher struct {
	arxiv  ArxivSearcher
	mirror WindowReader
	bucket *TokenBucket
	cfg    Config
}

// New constructs a Fetcher. mirror may be nil when no Supabase mirror is
// configured; PreferSupabaseRead is then ignored. The returned Fetcher
// owns a single TokenBucket enforcing QuerySpacing between arXiv
// searches, replacing the module-level mutable timestamp a global rate
// gate would otherwise need.
func New(arxivClient ArxivSearcher, mirror WindowReader, cfg Config) *Fetcher {
	cfg = cfg.WithDefaults()
	return &Fetcher{
		arxiv:  arxivClient,
		mirror: mirror,
		bucket: NewTokenBucket(1, cfg.QuerySpacing),
		cfg:    cfg,
	}
}

// Window computes the UTC [start, end) range for the configured days
// window, anchored at end (normally time.Now().UTC()).
func Window(end time.Time, daysWindow int) (time.Time, time.Time) {
	end = end.UTC()
	start := end.AddDate(0, 0, -daysWindow)
	return start, end
}

// Run fetches the paper set for plan, honoring source preference, and
// de-duplicates against seen. Accepted papers' keys are added to seen but
// not committed; the caller commits after the run completes successfully,
// so a failure partway through a run never corrupts cross-run state.
func (f *Fetcher) Run(ctx context.Context, plan model.QueryPlan, end time.Time, seen *archive.SeenSet) ([]model.Paper, error) {
	start, end := Window(end, f.cfg.DaysWindow)

	var candidates []model.Paper
	if f.cfg.PreferSupabaseRead && f.mirror != nil {
		papers, err := f.mirror.FetchWindow(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch from supabase mirror: %w", err)
		}
		candidates = papers
	} else {
		papers, err := f.searchArxiv(ctx, plan)
		if err != nil {
			return nil, err
		}
		candidates = papers
	}

	byID := make(map[string]model.Paper, len(candidates))
	for _, p := range candidates {
		if p.Published.Before(start) || !p.Published.Before(end) {
			continue
		}
		if existing, ok := byID[p.ID]; ok {
			if p.Published.After(existing.Published) {
				byID[p.ID] = p
			}
			continue
		}
		byID[p.ID] = p
	}

	result := make([]model.Paper, 0, len(byID))
	for _, p := range byID {
		key := p.SeenKey()
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		result = append(result, p)
	}

	return result, nil
}

// searchArxiv issues one arXiv search per distinct query_text in the plan
// (BM25 and embedding queries for the same requirement commonly share the
// same text; searching once avoids redundant requests against a rate
// limited API), spacing requests by QuerySpacing, unioning results by
// normalized id. Each query retries transient (5xx/network) failures per
// the pipeline's standard provider backoff (base 2, max 3 attempts); a
// query that is still failing once retries are exhausted is logged and
// skipped rather than failing the whole fetch.
func (f *Fetcher) searchArxiv(ctx context.Context, plan model.QueryPlan) ([]model.Paper, error) {
	seenText := make(map[string]struct{})
	var texts []string
	for _, q := range append(append([]model.Query{}, plan.BM25Queries...), plan.EmbedQueries...) {
		if q.QueryText == "" {
			continue
		}
		if _, ok := seenText[q.QueryText]; ok {
			continue
		}
		seenText[q.QueryText] = struct{}{}
		texts = append(texts, q.QueryText)
	}

	cfg := dprerrors.ProviderRetryConfig()
	var all []model.Paper
	for _, text := range texts {
		if err := f.bucket.Wait(ctx); err != nil {
			return nil, err
		}

		papers, err := dprerrors.RetryWithResult(ctx, cfg, func() ([]model.Paper, error) {
			return f.arxiv.Search(ctx, text, f.cfg.MaxResultsPerQuery)
		})
		if err != nil {
			slog.Warn("arxiv query failed after retries, skipping", "query_text", text, "error", err)
			continue
		}
		all = append(all, papers...)
	}

	return all, nil
}
