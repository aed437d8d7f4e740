package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

func newTestEngine(workers int) PlagiarismEngine {
	return NewPlagiarismEngine(
		NewSimilarityScorer(DefaultScorerConfig()),
		NewCandidateSelector(DefaultSelectorConfig(), zerolog.Nop()),
		zerolog.Nop(),
		EngineConfig{Workers: workers},
	)
}

func TestDetectPlagiarismScenario(t *testing.T) {
	engine := newTestEngine(2)
	subs := []models.Submission{
		submission("C", "carol", helloPy),
		submission("A", "alice", factorialPy),
		submission("B", "bob", factorialPy),
	}

	sims, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{}, nil)
	if err != nil {
		t.Fatalf("DetectPlagiarism() error = %v", err)
	}
	if len(sims) != 3 {
		t.Fatalf("got %d similarities, want 3", len(sims))
	}

	byPair := make(map[string]models.Similarity)
	for _, s := range sims {
		byPair[s.Submission1ID+s.Submission2ID] = s
	}

	if got := byPair["AB"].SimilarityScore; got != MaxScore {
		t.Errorf("A/B score = %v, want %v", got, MaxScore)
	}
	for _, key := range []string{"AC", "BC"} {
		s, ok := byPair[key]
		if !ok {
			t.Fatalf("pair %s missing", key)
		}
		if s.SimilarityScore >= 20 {
			t.Errorf("%s score = %v, want < 20", key, s.SimilarityScore)
		}
	}
}

func TestDetectPlagiarismPairCount(t *testing.T) {
	engine := newTestEngine(3)

	for _, n := range []int{0, 1, 2, 5, 12} {
		subs := generateSubmissions(n)
		sims, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{}, nil)
		if err != nil {
			t.Fatalf("n=%d: error = %v", n, err)
		}

		want := n * (n - 1) / 2
		if len(sims) != want {
			t.Errorf("n=%d: got %d similarities, want %d", n, len(sims), want)
		}

		seen := make(map[string]struct{})
		for _, s := range sims {
			if s.Submission1ID >= s.Submission2ID {
				t.Errorf("n=%d: pair %s/%s not canonical", n, s.Submission1ID, s.Submission2ID)
			}
			key := s.Submission1ID + "|" + s.Submission2ID
			if _, dup := seen[key]; dup {
				t.Errorf("n=%d: duplicate pair %s", n, key)
			}
			seen[key] = struct{}{}
		}
	}
}

func TestDetectPlagiarismFastIsSubset(t *testing.T) {
	engine := newTestEngine(4)
	subs := generateSubmissions(30)

	exhaustive, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{}, nil)
	if err != nil {
		t.Fatalf("DetectPlagiarism() error = %v", err)
	}
	fast, err := engine.DetectPlagiarismFast(context.Background(), subs, CompareOptions{}, nil)
	if err != nil {
		t.Fatalf("DetectPlagiarismFast() error = %v", err)
	}

	full := make(map[string]float64, len(exhaustive))
	for _, s := range exhaustive {
		full[s.Submission1ID+"|"+s.Submission2ID] = s.SimilarityScore
	}

	if len(fast) > len(exhaustive) {
		t.Fatalf("fast returned %d pairs, exhaustive %d", len(fast), len(exhaustive))
	}
	for _, s := range fast {
		score, ok := full[s.Submission1ID+"|"+s.Submission2ID]
		if !ok {
			t.Errorf("fast pair %s/%s not in exhaustive result", s.Submission1ID, s.Submission2ID)
			continue
		}
		if score != s.SimilarityScore {
			t.Errorf("fast score %v differs from exhaustive %v", s.SimilarityScore, score)
		}
	}
}

func TestDetectPlagiarismDeterministicOrder(t *testing.T) {
	engine := newTestEngine(4)
	subs := generateSubmissions(8)

	reversed := make([]models.Submission, len(subs))
	for i, s := range subs {
		reversed[len(subs)-1-i] = s
	}

	first, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.DetectPlagiarism(context.Background(), reversed, CompareOptions{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := range first {
		if first[i].Submission1ID != second[i].Submission1ID || first[i].Submission2ID != second[i].Submission2ID {
			t.Fatalf("order differs at %d", i)
		}
	}
}

func TestDetectPlagiarismProgress(t *testing.T) {
	engine := newTestEngine(4)
	subs := generateSubmissions(10)

	var calls []int
	lastTotal := 0
	_, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{}, func(current, total int) {
		calls = append(calls, current)
		lastTotal = total
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(calls) != 45 || lastTotal != 45 {
		t.Fatalf("got %d progress calls with total %d, want 45", len(calls), lastTotal)
	}
	for i, c := range calls {
		if c != i+1 {
			t.Fatalf("progress call %d reported %d", i, c)
		}
	}
}

func TestDetectPlagiarismCancelled(t *testing.T) {
	engine := newTestEngine(1)
	subs := generateSubmissions(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.DetectPlagiarism(ctx, subs, CompareOptions{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("pre-cancelled error = %v, want context.Canceled", err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	sims, err := engine.DetectPlagiarism(ctx, subs, CompareOptions{}, func(current, total int) {
		if current == 1 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("mid-run error = %v, want context.Canceled", err)
	}
	if sims != nil {
		t.Errorf("expected no results after cancellation, got %d", len(sims))
	}
}

func TestCompareOne(t *testing.T) {
	engine := newTestEngine(2)
	target := submission("m", "target", factorialPy)
	others := []models.Submission{
		submission("z", "s1", factorialRenamedPy),
		target,
		submission("a", "s2", helloPy),
		submission("k", "s3", factorialPy),
	}

	sims, err := engine.CompareOne(context.Background(), target, others, CompareOptions{}, nil)
	if err != nil {
		t.Fatalf("CompareOne() error = %v", err)
	}
	if len(sims) != 3 {
		t.Fatalf("got %d similarities, want 3", len(sims))
	}

	wantOrder := []string{"a", "k", "z"}
	for i, s := range sims {
		if s.Submission1ID != target.ID {
			t.Errorf("similarity %d has Submission1ID %s, want target", i, s.Submission1ID)
		}
		if s.Submission2ID != wantOrder[i] {
			t.Errorf("similarity %d compares %s, want %s", i, s.Submission2ID, wantOrder[i])
		}
	}
	if sims[1].SimilarityScore != MaxScore {
		t.Errorf("identical copy scored %v", sims[1].SimilarityScore)
	}
}

func TestDetectPlagiarismFilter(t *testing.T) {
	engine := newTestEngine(2)
	subs := []models.Submission{
		submission("1", "alice", factorialPy),
		submission("2", "alice", factorialRenamedPy),
		submission("3", "bob", helloPy),
	}

	differentStudents := func(a, b models.Submission) bool { return a.StudentID != b.StudentID }
	sims, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{Filter: differentStudents}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sims) != 2 {
		t.Fatalf("got %d similarities, want 2", len(sims))
	}
	for _, s := range sims {
		if s.Submission1ID == "1" && s.Submission2ID == "2" {
			t.Error("same student pair was scored")
		}
	}
}

type panickingScorer struct {
	SimilarityScorer
}

func (panickingScorer) Score(a, b []Token) Scores {
	panic("scorer bug")
}

func TestDetectPlagiarismRecoversScorerPanic(t *testing.T) {
	engine := NewPlagiarismEngine(
		panickingScorer{SimilarityScorer: NewSimilarityScorer(DefaultScorerConfig())},
		NewCandidateSelector(DefaultSelectorConfig(), zerolog.Nop()),
		zerolog.Nop(),
		EngineConfig{Workers: 2},
	)
	subs := []models.Submission{
		submission("A", "alice", helloPy),
		submission("B", "bob", factorialPy),
		submission("C", "carol", factorialPy),
	}

	sims, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{}, nil)
	if !errors.Is(err, ErrComparisonPanic) {
		t.Fatalf("error = %v, want ErrComparisonPanic", err)
	}
	if sims != nil {
		t.Errorf("similarities = %v, want nil on failure", sims)
	}
}

func TestHighlightThreshold(t *testing.T) {
	engine := newTestEngine(2)
	subs := []models.Submission{
		submission("A", "alice", factorialPy),
		submission("B", "bob", factorialPy),
		submission("C", "carol", helloPy),
	}

	sims, err := engine.DetectPlagiarism(context.Background(), subs, CompareOptions{HighlightThreshold: 50}, nil)
	if err != nil {
		t.Fatalf("DetectPlagiarism() error = %v", err)
	}

	for _, s := range sims {
		highlighted := string(s.HighlightData) != "[]"
		if s.SimilarityScore >= 50 && !highlighted {
			t.Errorf("%s/%s scored %.2f but has no highlight", s.Submission1ID, s.Submission2ID, s.SimilarityScore)
		}
		if s.SimilarityScore < 50 && highlighted {
			t.Errorf("%s/%s scored %.2f below threshold but was highlighted", s.Submission1ID, s.Submission2ID, s.SimilarityScore)
		}
	}
}
