package analyzer

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/models"
)

// HighlightTile is a maximal run of identical tokens found in both sides.
// Offsets are token indices.
type HighlightTile struct {
	AStart int
	BStart int
	Length int
}

// GreedyStringTiling repeatedly marks the longest unmarked common run of at
// least minLength tokens until no such run remains. Ties go to the smallest
// AStart, then the smallest BStart.
//
// Every maximal common run is found in one O(len(a)*len(b)) sweep and kept in
// a max-heap. Marking only shrinks runs, so a popped run that is still fully
// unmarked is the longest one left; a run cut by earlier tiles is split into
// its unmarked pieces and pushed back. ctx is checked once per accepted tile.
func GreedyStringTiling(ctx context.Context, a, b []Token, minLength int) ([]HighlightTile, error) {
	if minLength <= 0 {
		minLength = 1
	}
	if len(a) < minLength || len(b) < minLength {
		return nil, nil
	}

	idsA, idsB := tokenIDs(a, b)

	candidates, err := maximalRuns(ctx, idsA, idsB, minLength)
	if err != nil {
		return nil, err
	}
	heap.Init(&candidates)

	markedA := make([]bool, len(a))
	markedB := make([]bool, len(b))
	var tiles []HighlightTile

	for candidates.Len() > 0 {
		c := heap.Pop(&candidates).(HighlightTile)

		if unmarked(markedA, markedB, c) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("highlight cancelled: %w", err)
			}
			for k := 0; k < c.Length; k++ {
				markedA[c.AStart+k] = true
				markedB[c.BStart+k] = true
			}
			tiles = append(tiles, c)
			continue
		}

		segStart := -1
		for k := 0; k <= c.Length; k++ {
			free := k < c.Length && !markedA[c.AStart+k] && !markedB[c.BStart+k]
			switch {
			case free && segStart < 0:
				segStart = k
			case !free && segStart >= 0:
				if k-segStart >= minLength {
					heap.Push(&candidates, HighlightTile{
						AStart: c.AStart + segStart,
						BStart: c.BStart + segStart,
						Length: k - segStart,
					})
				}
				segStart = -1
			}
		}
	}

	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].AStart != tiles[j].AStart {
			return tiles[i].AStart < tiles[j].AStart
		}
		return tiles[i].BStart < tiles[j].BStart
	})

	return tiles, nil
}

// tokenIDs interns token texts so the sweep compares ints.
func tokenIDs(a, b []Token) ([]int32, []int32) {
	dict := make(map[string]int32)
	intern := func(tokens []Token) []int32 {
		ids := make([]int32, len(tokens))
		for i, t := range tokens {
			id, ok := dict[t.Text]
			if !ok {
				id = int32(len(dict))
				dict[t.Text] = id
			}
			ids[i] = id
		}
		return ids
	}
	return intern(a), intern(b)
}

// maximalRuns lists every common run of at least minLength tokens that can be
// extended neither left nor right. Rows are swept bottom-up so run[j] holds
// the length of the common run starting at (i, j).
func maximalRuns(ctx context.Context, a, b []int32, minLength int) (tileHeap, error) {
	next := make([]int32, len(b)+1)
	curr := make([]int32, len(b)+1)
	var runs tileHeap

	for i := len(a) - 1; i >= 0; i-- {
		if i%128 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("highlight cancelled: %w", err)
			}
		}
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] != b[j] {
				curr[j] = 0
				continue
			}
			curr[j] = next[j+1] + 1
			if int(curr[j]) >= minLength && (i == 0 || j == 0 || a[i-1] != b[j-1]) {
				runs = append(runs, HighlightTile{AStart: i, BStart: j, Length: int(curr[j])})
			}
		}
		next, curr = curr, next
	}

	return runs, nil
}

func unmarked(markedA, markedB []bool, t HighlightTile) bool {
	for k := 0; k < t.Length; k++ {
		if markedA[t.AStart+k] || markedB[t.BStart+k] {
			return false
		}
	}
	return true
}

// tileHeap pops the longest tile first, then the smallest AStart and BStart.
type tileHeap []HighlightTile

func (h tileHeap) Len() int { return len(h) }

func (h tileHeap) Less(i, j int) bool {
	if h[i].Length != h[j].Length {
		return h[i].Length > h[j].Length
	}
	if h[i].AStart != h[j].AStart {
		return h[i].AStart < h[j].AStart
	}
	return h[i].BStart < h[j].BStart
}

func (h tileHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *tileHeap) Push(x interface{}) { *h = append(*h, x.(HighlightTile)) }

func (h *tileHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// HighlightRegions converts token tiles into line ranges of the original code.
func HighlightRegions(a, b []Token, tiles []HighlightTile) []models.HighlightRegion {
	regions := make([]models.HighlightRegion, 0, len(tiles))
	for _, t := range tiles {
		regions = append(regions, models.HighlightRegion{
			AStartLine: a[t.AStart].Line,
			AEndLine:   a[t.AStart+t.Length-1].Line,
			BStartLine: b[t.BStart].Line,
			BEndLine:   b[t.BStart+t.Length-1].Line,
			Tokens:     t.Length,
		})
	}
	return regions
}

// EncodeHighlight marshals regions into the highlight_data column format.
// No regions encode as an empty JSON array.
func EncodeHighlight(regions []models.HighlightRegion) json.RawMessage {
	if len(regions) == 0 {
		return json.RawMessage("[]")
	}
	data, err := json.Marshal(regions)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}
