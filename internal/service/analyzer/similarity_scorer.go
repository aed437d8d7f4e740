package analyzer

import (
	"context"
	"math"
)

const MaxScore = 100.0

// Scores holds the metrics of one compared pair on a 0-100 scale.
type Scores struct {
	Jaccard  float64 `json:"jaccard_score"`
	LCS      float64 `json:"lcs_score"`
	Combined float64 `json:"similarity_score"`
}

type SimilarityScorer interface {
	Score(a, b []Token) Scores
	// Highlight tiles the common runs of a and b. Inputs longer than
	// MaxHighlightTokens are not tiled.
	Highlight(ctx context.Context, a, b []Token) ([]HighlightTile, error)
}

type ScorerConfig struct {
	JaccardWeight      float64
	LCSWeight          float64
	MinTileLength      int
	MaxHighlightTokens int
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		JaccardWeight:      0.4,
		LCSWeight:          0.6,
		MinTileLength:      5,
		MaxHighlightTokens: 1500,
	}
}

type similarityScorer struct {
	config ScorerConfig
}

// NewSimilarityScorer builds a scorer. Weights are normalized so that they sum
// to one; non-positive weights fall back to the defaults.
func NewSimilarityScorer(config ScorerConfig) SimilarityScorer {
	defaults := DefaultScorerConfig()
	if config.JaccardWeight < 0 || config.LCSWeight < 0 || config.JaccardWeight+config.LCSWeight == 0 {
		config.JaccardWeight = defaults.JaccardWeight
		config.LCSWeight = defaults.LCSWeight
	}
	sum := config.JaccardWeight + config.LCSWeight
	config.JaccardWeight /= sum
	config.LCSWeight /= sum

	if config.MinTileLength <= 0 {
		config.MinTileLength = defaults.MinTileLength
	}
	if config.MaxHighlightTokens <= 0 {
		config.MaxHighlightTokens = defaults.MaxHighlightTokens
	}

	return &similarityScorer{config: config}
}

// Score computes jaccard, LCS and the weighted combination:
//
//	combined = JaccardWeight*jaccard + LCSWeight*lcs
//
// The result is symmetric in a and b. An empty side scores zero.
func (s *similarityScorer) Score(a, b []Token) Scores {
	if len(a) == 0 || len(b) == 0 {
		return Scores{}
	}

	textsA := Texts(a)
	textsB := Texts(b)

	jaccard := JaccardSimilarity(textsA, textsB)
	lcs := LCSSimilarity(textsA, textsB)
	combined := s.config.JaccardWeight*jaccard + s.config.LCSWeight*lcs

	return Scores{
		Jaccard:  roundScore(jaccard),
		LCS:      roundScore(lcs),
		Combined: roundScore(combined),
	}
}

func (s *similarityScorer) Highlight(ctx context.Context, a, b []Token) ([]HighlightTile, error) {
	if len(a) > s.config.MaxHighlightTokens || len(b) > s.config.MaxHighlightTokens {
		return nil, nil
	}
	return GreedyStringTiling(ctx, a, b, s.config.MinTileLength)
}

// JaccardSimilarity is |A ∩ B| / |A ∪ B| over the token sets, scaled to 0-100.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	set1 := make(map[string]struct{}, len(a))
	for _, token := range a {
		set1[token] = struct{}{}
	}

	set2 := make(map[string]struct{}, len(b))
	for _, token := range b {
		set2[token] = struct{}{}
	}

	intersection := 0
	for token := range set1 {
		if _, ok := set2[token]; ok {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union) * MaxScore
}

// LCSSimilarity is 2*LCS(a,b) / (len(a)+len(b)), scaled to 0-100.
func LCSSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	lcs := lcsLength(a, b)
	return 2.0 * float64(lcs) / float64(len(a)+len(b)) * MaxScore
}

// lcsLength uses two rows of the DP table, sized by the shorter input.
func lcsLength(a, b []string) int {
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for j := 1; j <= len(b); j++ {
		for i := 1; i <= len(a); i++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[i] = prev[i-1] + 1
			case prev[i] >= curr[i-1]:
				curr[i] = prev[i]
			default:
				curr[i] = curr[i-1]
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}

func roundScore(v float64) float64 {
	v = math.Round(v*100) / 100
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
