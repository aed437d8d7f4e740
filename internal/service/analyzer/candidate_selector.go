package analyzer

import (
	"sort"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
	"github.com/rs/zerolog"
)

// Document is a submission together with the token stream it is scored on.
type Document struct {
	Submission models.Submission
	Tokens     []Token
}

// Pair holds indices into the document slice, I < J.
type Pair struct {
	I int
	J int
}

// PairFilter reports whether a pair may be compared at all.
type PairFilter func(a, b models.Submission) bool

type CandidateSelector interface {
	// SelectPairs returns the pairs worth a full comparison, ordered by (I, J).
	// The result is always a subset of all pairs accepted by filter.
	SelectPairs(docs []Document, filter PairFilter) []Pair
}

type SelectorConfig struct {
	// ExhaustiveBelow is the document count under which every pair is returned.
	ExhaustiveBelow int
	MinOverlap      float64
	KGramSize       int
	WindowSize      int
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		ExhaustiveBelow: 20,
		MinOverlap:      0.10,
		KGramSize:       DefaultKGramSize,
		WindowSize:      DefaultWindowSize,
	}
}

type candidateSelector struct {
	config SelectorConfig
	logger zerolog.Logger
}

func NewCandidateSelector(config SelectorConfig, logger zerolog.Logger) CandidateSelector {
	defaults := DefaultSelectorConfig()
	if config.ExhaustiveBelow < 0 {
		config.ExhaustiveBelow = defaults.ExhaustiveBelow
	}
	if config.MinOverlap <= 0 || config.MinOverlap > 1 {
		config.MinOverlap = defaults.MinOverlap
	}
	if config.KGramSize <= 0 {
		config.KGramSize = defaults.KGramSize
	}
	if config.WindowSize <= 0 {
		config.WindowSize = defaults.WindowSize
	}

	return &candidateSelector{
		config: config,
		logger: logger,
	}
}

func (s *candidateSelector) SelectPairs(docs []Document, filter PairFilter) []Pair {
	if len(docs) < 2 {
		return []Pair{}
	}

	if len(docs) < s.config.ExhaustiveBelow {
		return AllPairs(docs, filter)
	}

	fingerprints := make([]Fingerprint, len(docs))
	for i, doc := range docs {
		fingerprints[i] = Winnow(Texts(doc.Tokens), s.config.KGramSize, s.config.WindowSize)
	}

	index := buildInvertedIndex(fingerprints)

	seen := make(map[Pair]struct{})
	var pairs []Pair

	add := func(p Pair) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		if filter != nil && !filter(docs[p.I].Submission, docs[p.J].Submission) {
			return
		}
		pairs = append(pairs, p)
	}

	checked := make(map[Pair]struct{})
	for _, members := range index {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				p := Pair{I: members[x], J: members[y]}
				if _, ok := checked[p]; ok {
					continue
				}
				checked[p] = struct{}{}

				if Overlap(fingerprints[p.I], fingerprints[p.J]) >= s.config.MinOverlap {
					add(p)
				}
			}
		}
	}

	// Identical files are always compared, even when winnowing found nothing
	// (empty or whitespace-only code).
	byHash := make(map[string][]int)
	for i, doc := range docs {
		if doc.Submission.CodeHash == "" {
			continue
		}
		byHash[doc.Submission.CodeHash] = append(byHash[doc.Submission.CodeHash], i)
	}
	for _, members := range byHash {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				add(Pair{I: members[x], J: members[y]})
			}
		}
	}

	sortPairs(pairs)

	s.logger.Debug().
		Int("documents", len(docs)).
		Int("fingerprints", len(index)).
		Int("candidate_pairs", len(pairs)).
		Int("all_pairs", len(docs)*(len(docs)-1)/2).
		Msg("Candidate pairs selected")

	if pairs == nil {
		return []Pair{}
	}
	return pairs
}

// AllPairs returns every unordered pair accepted by filter.
func AllPairs(docs []Document, filter PairFilter) []Pair {
	pairs := make([]Pair, 0, len(docs)*(len(docs)-1)/2)
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if filter != nil && !filter(docs[i].Submission, docs[j].Submission) {
				continue
			}
			pairs = append(pairs, Pair{I: i, J: j})
		}
	}
	return pairs
}

// buildInvertedIndex maps hash to the documents containing it. Hashes owned
// by a single document cannot produce a pair and are dropped.
func buildInvertedIndex(fingerprints []Fingerprint) map[uint64][]int {
	index := make(map[uint64][]int)
	for i, fp := range fingerprints {
		for h := range fp {
			index[h] = append(index[h], i)
		}
	}

	for h, members := range index {
		if len(members) < 2 {
			delete(index, h)
		}
	}

	return index
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
}
