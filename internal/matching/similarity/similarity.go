// Package similarity ranks candidate intents by cosine similarity of their embeddings.
package similarity

import (
	"math"
	"sort"
)

// Candidate is anything with an ID and an embedding (possibly nil).
type Candidate struct {
	ID        string
	Embedding []float64
}

type Ranked struct {
	ID         string
	Similarity float64
}

// Cosine returns dot(a,b) / (|a|·|b|). It is 0 for empty or mismatched inputs
// and when either vector has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank orders candidates by descending similarity to source, drops those below
// floor and keeps at most k. Equal scores keep their input order.
func Rank(source []float64, candidates []Candidate, floor float64, k int) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		s := Cosine(source, c.Embedding)
		if s < floor {
			continue
		}
		ranked = append(ranked, Ranked{ID: c.ID, Similarity: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Prefix is the unranked fallback: the first k candidates with zero similarity.
func Prefix(candidates []Candidate, k int) []Ranked {
	if k >= 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{ID: c.ID}
	}
	return out
}
