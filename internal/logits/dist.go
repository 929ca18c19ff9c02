// Package logits turns raw model scores into calibrated candidate
// distributions and picks next tokens from them. All probability math uses
// the shifted log-sum-exp form so large or very negative logits never
// overflow.
package logits

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Default clamp range for requested top-k values.
const (
	DefaultKMin = 5
	DefaultKMax = 30
)

// ErrNonFinite reports a logit vector containing NaN or Inf. Callers must
// treat the whole step as failed rather than rank a poisoned distribution.
var ErrNonFinite = errors.New("non-finite logit")

// Bounds is the clamp policy for requested top-k values. The zero value
// means the default [5, 30] range.
type Bounds struct {
	KMin int
	KMax int
}

func (b Bounds) orDefault() Bounds {
	if b.KMin <= 0 {
		b.KMin = DefaultKMin
	}
	if b.KMax <= 0 {
		b.KMax = DefaultKMax
	}
	return b
}

// ClampK applies the bounds to a requested k over a vocabulary of size v.
// Zero or negative requests clamp to KMin; a vocabulary smaller than the
// clamped k wins.
func (b Bounds) ClampK(k, v int) int {
	b = b.orDefault()
	if k < b.KMin {
		k = b.KMin
	}
	if k > b.KMax {
		k = b.KMax
	}
	if k > v {
		k = v
	}
	return k
}

// Candidate is one vocabulary entry of a ranked distribution.
type Candidate struct {
	ID      int
	Prob    float64
	Logprob float64
}

// Ranking is the ordered top slice of a distribution. Candidates are sorted
// strictly descending by probability, ties broken by ascending token id.
// Coverage is the probability mass the slice captures; it stays below 1
// unless UsedK equals the vocabulary size.
type Ranking struct {
	Candidates []Candidate
	Coverage   float64
	UsedK      int
}

// Rank converts logits to a stable probability distribution and returns the
// top-k slice. The requested k is clamped per bounds; UsedK reports the
// value actually applied so callers can detect clamping.
func Rank(logits []float32, k int, bounds Bounds) (Ranking, error) {
	if len(logits) == 0 {
		return Ranking{}, fmt.Errorf("rank: empty logit vector")
	}
	if err := checkFinite(logits); err != nil {
		return Ranking{}, err
	}

	used := bounds.ClampK(k, len(logits))
	lse := logSumExp(logits)

	idx := topIndices(logits, used)
	cands := make([]Candidate, len(idx))
	var coverage float64
	for i, id := range idx {
		lp := float64(logits[id]) - lse
		p := math.Exp(lp)
		cands[i] = Candidate{ID: id, Prob: p, Logprob: lp}
		coverage += p
	}

	return Ranking{Candidates: cands, Coverage: coverage, UsedK: used}, nil
}

// Contains reports whether the ranking already carries the given token id.
func (r Ranking) Contains(id int) bool {
	for _, c := range r.Candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Merge guarantees the given candidate appears in the ranking. When absent,
// the lowest-ranked entry is evicted and the candidate inserted at its
// sorted position, keeping length and descending order intact. Coverage is
// recomputed from the resulting slice. The merge is a deliberate display
// rule: a stochastic draw may land outside the ranked slice, and the caller
// still has to show it.
func (r *Ranking) Merge(c Candidate) {
	if r.Contains(c.ID) {
		return
	}
	if len(r.Candidates) == 0 {
		r.Candidates = []Candidate{c}
		r.Coverage = c.Prob
		return
	}
	r.Candidates[len(r.Candidates)-1] = c
	sort.SliceStable(r.Candidates, func(i, j int) bool {
		if r.Candidates[i].Prob != r.Candidates[j].Prob {
			return r.Candidates[i].Prob > r.Candidates[j].Prob
		}
		return r.Candidates[i].ID < r.Candidates[j].ID
	})
	var coverage float64
	for _, cand := range r.Candidates {
		coverage += cand.Prob
	}
	r.Coverage = coverage
}

// logSumExp computes log Σ exp(x_i) with the max shifted out so exp never
// overflows.
func logSumExp(x []float32) float64 {
	maxv := x[0]
	for _, v := range x[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - maxv))
	}
	return float64(maxv) + math.Log(sum)
}

// topIndices returns the indices of the k largest logits ordered descending
// by value, ties broken by ascending index. Insertion into a short sorted
// prefix; O(V*K) and good enough for the clamped k range.
func topIndices(logits []float32, k int) []int {
	idx := make([]int, 0, k+1)
	for i, v := range logits {
		pos := len(idx)
		for pos > 0 && logits[idx[pos-1]] < v {
			pos--
		}
		if pos >= k {
			continue
		}
		idx = append(idx, 0)
		copy(idx[pos+1:], idx[pos:])
		idx[pos] = i
		if len(idx) > k {
			idx = idx[:k]
		}
	}
	return idx
}

func checkFinite(logits []float32) error {
	for i, v := range logits {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}
