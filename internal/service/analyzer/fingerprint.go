package analyzer

import (
	"hash/fnv"
)

const (
	DefaultKGramSize  = 5
	DefaultWindowSize = 4
)

// Fingerprint is the winnowed set of k-gram hashes of one token stream.
type Fingerprint map[uint64]struct{}

// Winnow hashes every k-gram of tokens and keeps the minimum hash of each
// window of w consecutive k-grams (rightmost on ties). Streams shorter than k
// are hashed as a single gram so that tiny submissions still match each other.
func Winnow(tokens []string, k, w int) Fingerprint {
	if k <= 0 {
		k = DefaultKGramSize
	}
	if w <= 0 {
		w = DefaultWindowSize
	}

	fp := make(Fingerprint)
	if len(tokens) == 0 {
		return fp
	}
	if len(tokens) < k {
		fp[hashGram(tokens)] = struct{}{}
		return fp
	}

	hashes := make([]uint64, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(tokens); i++ {
		hashes = append(hashes, hashGram(tokens[i:i+k]))
	}

	if len(hashes) <= w {
		fp[minHash(hashes)] = struct{}{}
		return fp
	}

	for i := 0; i+w <= len(hashes); i++ {
		fp[minHash(hashes[i:i+w])] = struct{}{}
	}

	return fp
}

func hashGram(gram []string) uint64 {
	h := fnv.New64a()
	for _, t := range gram {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func minHash(window []uint64) uint64 {
	m := window[0]
	for _, v := range window[1:] {
		if v <= m {
			m = v
		}
	}
	return m
}

// Overlap is shared / min(|a|, |b|).
func Overlap(a, b Fingerprint) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	shared := 0
	for h := range a {
		if _, ok := b[h]; ok {
			shared++
		}
	}

	return float64(shared) / float64(len(a))
}
