package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/dpr-pipeline/internal/archive"
	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// DefaultThresholdStars is the minimum star rating (in any query) a
// candidate must reach to be sent to the refiner.
const DefaultThresholdStars = 4

// DefaultBatchSize is the number of documents per chat-completion call.
const DefaultBatchSize = 10

// DefaultMaxChars is the per-document truncation length.
const DefaultMaxChars = 850

// DefaultConcurrency is the number of batches allowed in flight at once.
const DefaultConcurrency = 8

// Config tunes the refiner's candidate assembly and batching behavior.
type Config struct {
	ThresholdStars int
	BatchSize      int
	MaxChars       int
	Concurrency    int
	DebugDir       string
	// RunID correlates this refiner's batch logs with the rest of a run's
	// stage subprocesses; optional, left blank outside the pipeline driver.
	RunID string
}

// WithDefaults fills any zero field with its package default.
func (c Config) WithDefaults() Config {
	if c.ThresholdStars <= 0 {
		c.ThresholdStars = DefaultThresholdStars
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Refiner runs the LLM refinement stage over rerank output.
type Refiner struct {
	provider     ChatProvider
	requirements []model.Requirement
	cfg          Config
	rng          *rand.Rand
}

// New constructs a Refiner. rng may be nil, in which case a source with the
// fixed seed 1 is used, so the shuffle order is the same on every run;
// tests pass their own seeded *rand.Rand.
func New(provider ChatProvider, requirements []model.Requirement, cfg Config, rng *rand.Rand) *Refiner {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Refiner{provider: provider, requirements: requirements, cfg: cfg.WithDefaults(), rng: rng}
}

// AssembleCandidates collects the union of papers whose star rating meets
// the threshold in any query's rerank output, deduplicated by id, and
// shuffles them to avoid positional bias across batches.
func (r *Refiner) AssembleCandidates(reranked []model.ReRanked, papersByID map[string]model.Paper) []model.Paper {
	seen := make(map[string]struct{})
	var candidates []model.Paper

	for _, list := range reranked {
		for _, e := range list.Entries {
			if e.StarRating < r.cfg.ThresholdStars {
				continue
			}
			if _, ok := seen[e.PaperID]; ok {
				continue
			}
			p, ok := papersByID[e.PaperID]
			if !ok {
				continue
			}
			seen[e.PaperID] = struct{}{}
			candidates = append(candidates, p)
		}
	}

	r.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	return candidates
}

// Run assembles candidates, runs batches with bounded concurrency, and
// merges per-paper scores keeping the highest score on id collisions.
func (r *Refiner) Run(ctx context.Context, reranked []model.ReRanked, papersByID map[string]model.Paper) ([]model.LLMScore, error) {
	candidates := r.AssembleCandidates(reranked, papersByID)
	if len(candidates) == 0 {
		return nil, nil
	}

	var batches [][]model.Paper
	for start := 0; start < len(candidates); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[start:end])
	}

	var mu sync.Mutex
	merged := make(map[string]model.LLMScore)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.cfg.Concurrency)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return nil
			}

			scores, err := r.runBatch(gctx, i, batch)
			if err != nil {
				slog.Warn("llm_refine_batch_failed", slog.Int("batch", i), slog.String("error", err.Error()))
				return nil
			}

			mu.Lock()
			for _, s := range scores {
				if existing, ok := merged[s.PaperID]; !ok || s.Score > existing.Score {
					merged[s.PaperID] = s
				}
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	out := make([]model.LLMScore, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaperID < out[j].PaperID })
	return out, nil
}

// runBatch sends one batch to the provider, recovers its JSON response,
// and maps requirement indices back to the planner's requirement ids.
func (r *Refiner) runBatch(ctx context.Context, batchIndex int, batch []model.Paper) ([]model.LLMScore, error) {
	traceID := uuid.New().String()
	slog.Debug("llm_refine_batch_started", slog.Int("batch", batchIndex), slog.String("trace_id", traceID), slog.String("run_id", r.cfg.RunID))

	userMsg, err := BuildUserMessage(r.requirements, batch, r.cfg.MaxChars)
	if err != nil {
		return nil, err
	}

	raw, err := r.provider.Complete(ctx, SystemPrompt, userMsg)
	if err != nil {
		return nil, err
	}

	parsed, err := DecodeLenient(raw)
	if err != nil {
		path := r.dumpDebug(batchIndex, raw)
		return nil, fmt.Errorf("batch %d (trace %s): %w (raw response dumped to %s)", batchIndex, traceID, err, path)
	}

	scores := make([]model.LLMScore, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		score := model.LLMScore{
			PaperID: res.ID,
			Score:   res.Score,
		}
		if res.MatchedRequirementIndex >= 1 && res.MatchedRequirementIndex <= len(r.requirements) {
			req := r.requirements[res.MatchedRequirementIndex-1]
			score.MatchedRequirementID = req.ID
			score.MatchedQueryTag = req.Tag
			score.MatchedQueryText = req.Query
		}
		score.EvidenceEN = res.EvidenceEN
		score.EvidenceCN = res.EvidenceCN
		score.TLDREN = res.TLDREN
		score.TLDRCN = res.TLDRCN
		score.ApplyFallback()
		scores = append(scores, score)
	}
	return scores, nil
}

func (r *Refiner) dumpDebug(batchIndex int, raw string) string {
	if r.cfg.DebugDir == "" {
		return ""
	}
	path := fmt.Sprintf("%s/filter_raw_batch_%03d.txt", r.cfg.DebugDir, batchIndex)
	if err := archive.WriteRaw(path, raw); err != nil {
		slog.Warn("llm_refine_debug_dump_failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return path
}
