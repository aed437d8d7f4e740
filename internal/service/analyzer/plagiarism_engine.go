package analyzer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

// ProgressFunc is called after every finished comparison with a strictly
// increasing current. Calls never overlap.
type ProgressFunc func(current, total int)

// CompareOptions tune one detection run.
type CompareOptions struct {
	// RawTokens compares lexemes as written, skipping identifier and literal
	// normalization.
	RawTokens bool
	// Filter drops pairs before scoring.
	Filter PairFilter
	// HighlightThreshold skips tiling for pairs whose combined score is
	// below it; their highlight data is an empty list.
	HighlightThreshold float64
}

// ErrComparisonPanic wraps a panic raised while scoring one pair.
var ErrComparisonPanic = errors.New("comparison panicked")

type PlagiarismEngine interface {
	// DetectPlagiarism scores every unordered pair of submissions.
	DetectPlagiarism(ctx context.Context, submissions []models.Submission, opts CompareOptions, progress ProgressFunc) ([]models.Similarity, error)
	// DetectPlagiarismFast scores only the pairs picked by the candidate selector.
	DetectPlagiarismFast(ctx context.Context, submissions []models.Submission, opts CompareOptions, progress ProgressFunc) ([]models.Similarity, error)
	// CompareOne scores target against each of others. Submission1ID of every
	// result is the target.
	CompareOne(ctx context.Context, target models.Submission, others []models.Submission, opts CompareOptions, progress ProgressFunc) ([]models.Similarity, error)
}

type EngineConfig struct {
	// Workers is the number of goroutines scoring pairs. Zero sizes the pool
	// from the CPU count.
	Workers int
}

type plagiarismEngine struct {
	scorer   SimilarityScorer
	selector CandidateSelector
	workers  int
	logger   zerolog.Logger
}

func NewPlagiarismEngine(
	scorer SimilarityScorer,
	selector CandidateSelector,
	logger zerolog.Logger,
	config EngineConfig,
) PlagiarismEngine {
	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers()
	}

	return &plagiarismEngine{
		scorer:   scorer,
		selector: selector,
		workers:  workers,
		logger:   logger,
	}
}

// defaultWorkers leaves a quarter of the CPUs to the rest of the process.
func defaultWorkers() int {
	totalCPU := runtime.NumCPU()
	reserve := max(1, totalCPU/4)
	return max(1, totalCPU-reserve)
}

func (e *plagiarismEngine) DetectPlagiarism(
	ctx context.Context,
	submissions []models.Submission,
	opts CompareOptions,
	progress ProgressFunc,
) ([]models.Similarity, error) {
	docs, err := e.prepare(ctx, submissions, opts)
	if err != nil {
		return nil, err
	}

	pairs := AllPairs(docs, opts.Filter)
	return e.run(ctx, "exhaustive", docs, pairs, opts, progress)
}

func (e *plagiarismEngine) DetectPlagiarismFast(
	ctx context.Context,
	submissions []models.Submission,
	opts CompareOptions,
	progress ProgressFunc,
) ([]models.Similarity, error) {
	docs, err := e.prepare(ctx, submissions, opts)
	if err != nil {
		return nil, err
	}

	pairs := e.selector.SelectPairs(docs, opts.Filter)
	return e.run(ctx, "fast", docs, pairs, opts, progress)
}

func (e *plagiarismEngine) CompareOne(
	ctx context.Context,
	target models.Submission,
	others []models.Submission,
	opts CompareOptions,
	progress ProgressFunc,
) ([]models.Similarity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("comparison cancelled: %w", err)
	}

	sorted := sortedByID(others)

	// Target is document 0, so every pair keeps it on the left.
	docs := make([]Document, 0, len(sorted)+1)
	docs = append(docs, e.document(target, opts))
	pairs := make([]Pair, 0, len(sorted))
	for _, other := range sorted {
		if other.ID == target.ID {
			continue
		}
		if opts.Filter != nil && !opts.Filter(target, other) {
			continue
		}
		docs = append(docs, e.document(other, opts))
		pairs = append(pairs, Pair{I: 0, J: len(docs) - 1})
	}

	return e.run(ctx, "star", docs, pairs, opts, progress)
}

// prepare orders submissions by ID so that I < J implies
// Submission1ID < Submission2ID, then tokenizes each once.
func (e *plagiarismEngine) prepare(ctx context.Context, submissions []models.Submission, opts CompareOptions) ([]Document, error) {
	sorted := sortedByID(submissions)
	docs := make([]Document, len(sorted))
	for i, sub := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("comparison cancelled: %w", err)
		}
		docs[i] = e.document(sub, opts)
	}
	return docs, nil
}

func (e *plagiarismEngine) document(sub models.Submission, opts CompareOptions) Document {
	return Document{
		Submission: sub,
		Tokens:     Tokenize(sub.CodeContent, !opts.RawTokens),
	}
}

// run fans the pairs out to the workers. The calling goroutine collects
// completions and drives progress, so the callback is never concurrent. The
// first failed pair cancels the rest.
func (e *plagiarismEngine) run(
	ctx context.Context,
	topology string,
	docs []Document,
	pairs []Pair,
	opts CompareOptions,
	progress ProgressFunc,
) ([]models.Similarity, error) {
	startTime := time.Now()
	total := len(pairs)
	results := make([]models.Similarity, total)

	if total == 0 {
		return results, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	done := make(chan struct{}, e.workers)

	var (
		failOnce sync.Once
		runErr   error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			runErr = err
			cancel()
		})
	}

	var wg sync.WaitGroup
	for w := 0; w < min(e.workers, total); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				p := pairs[idx]
				sim, err := e.compare(runCtx, docs[p.I], docs[p.J], opts)
				if err != nil {
					fail(err)
					continue
				}
				results[idx] = sim
				done <- struct{}{}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range pairs {
			select {
			case <-runCtx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	current := 0
	for range done {
		current++
		if progress != nil {
			progress(current, total)
		}
	}

	if errors.Is(runErr, ErrComparisonPanic) {
		return nil, runErr
	}
	if current < total {
		return nil, fmt.Errorf("comparison cancelled after %d of %d pairs: %w", current, total, ctx.Err())
	}

	e.logger.Debug().
		Str("topology", topology).
		Int("submissions", len(docs)).
		Int("pairs", total).
		Int("workers", min(e.workers, total)).
		Dur("duration", time.Since(startTime)).
		Msg("Comparisons finished")

	return results, nil
}

// compare scores one pair. A panic in the scorer is returned as
// ErrComparisonPanic instead of taking the process down.
func (e *plagiarismEngine) compare(ctx context.Context, a, b Document, opts CompareOptions) (sim models.Similarity, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("submission1_id", a.Submission.ID).
				Str("submission2_id", b.Submission.ID).
				Interface("panic", r).
				Msg("Comparison panicked")
			err = fmt.Errorf("%w: %s vs %s: %v", ErrComparisonPanic, a.Submission.ID, b.Submission.ID, r)
		}
	}()

	scores := e.scorer.Score(a.Tokens, b.Tokens)

	var tiles []HighlightTile
	if scores.Combined >= opts.HighlightThreshold {
		tiles, err = e.scorer.Highlight(ctx, a.Tokens, b.Tokens)
		if err != nil {
			return models.Similarity{}, err
		}
	}

	return models.Similarity{
		Submission1ID:   a.Submission.ID,
		Submission2ID:   b.Submission.ID,
		SimilarityScore: scores.Combined,
		JaccardScore:    scores.Jaccard,
		LCSScore:        scores.LCS,
		HighlightData:   EncodeHighlight(HighlightRegions(a.Tokens, b.Tokens, tiles)),
	}, nil
}

func sortedByID(submissions []models.Submission) []models.Submission {
	sorted := make([]models.Submission, len(submissions))
	copy(sorted, submissions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
