package logits

import (
	"fmt"
	"math"
	"sort"
)

// Mode selects between the two choice policies. There are no transitions;
// each call picks one.
type Mode string

const (
	ModeArgmax     Mode = "argmax"
	ModeStochastic Mode = "stochastic"
)

// Policy describes how Choose picks the next token. Temperature and
// NucleusP only matter in stochastic mode.
type Policy struct {
	Mode        Mode
	Temperature float64
	NucleusP    float64
}

// Chosen is the picked token together with its probability under the
// original (unscaled, unfiltered) distribution. Surprisal is -Logprob.
type Chosen struct {
	ID        int
	Prob      float64
	Logprob   float64
	Surprisal float64
}

// Choose picks exactly one token id from the logits under the given policy.
//
// Argmax takes the maximum logit, first occurrence winning so ties resolve
// to the smallest id. Stochastic scales by 1/Temperature, recomputes a
// stable softmax, keeps the smallest descending prefix whose cumulative
// probability reaches NucleusP (never fewer than one token), renormalizes
// and draws with rng.
//
// In both modes the reported prob/logprob come from the original
// full-vocabulary softmax: temperature and nucleus govern selection only,
// so the surprisal reflects the true model distribution.
func Choose(logits []float32, pol Policy, rng func() float64) (Chosen, error) {
	if len(logits) == 0 {
		return Chosen{}, fmt.Errorf("choose: empty logit vector")
	}
	if err := checkFinite(logits); err != nil {
		return Chosen{}, err
	}

	var id int
	switch pol.Mode {
	case ModeArgmax:
		id = argmax(logits)
	case ModeStochastic:
		if pol.Temperature <= 0 {
			return Chosen{}, fmt.Errorf("choose: temperature must be positive, got %v", pol.Temperature)
		}
		if pol.NucleusP <= 0 || pol.NucleusP > 1 {
			return Chosen{}, fmt.Errorf("choose: nucleus-p must be in (0, 1], got %v", pol.NucleusP)
		}
		if rng == nil {
			return Chosen{}, fmt.Errorf("choose: stochastic mode requires a randomness source")
		}
		id = sampleNucleus(logits, pol.Temperature, pol.NucleusP, rng)
	default:
		return Chosen{}, fmt.Errorf("choose: unknown mode %q", pol.Mode)
	}

	lse := logSumExp(logits)
	lp := float64(logits[id]) - lse
	return Chosen{
		ID:        id,
		Prob:      math.Exp(lp),
		Logprob:   lp,
		Surprisal: -lp,
	}, nil
}

// Candidate converts the choice into a ranking entry for the merge rule.
func (c Chosen) Candidate() Candidate {
	return Candidate{ID: c.ID, Prob: c.Prob, Logprob: c.Logprob}
}

// Soften returns a copy of logits with penalty subtracted from the given
// token ids. Used to discourage terminators (newline, end-of-sequence)
// without forbidding them; everything downstream sees the biased scores.
func Soften(logits []float32, ids []int, penalty float32) []float32 {
	out := make([]float32, len(logits))
	copy(out, logits)
	for _, id := range ids {
		if id >= 0 && id < len(out) {
			out[id] -= penalty
		}
	}
	return out
}

func argmax(x []float32) int {
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// sampleNucleus draws one id from the temperature-scaled nucleus of the
// distribution.
func sampleNucleus(logits []float32, temperature, nucleusP float64, rng func() float64) int {
	invT := 1.0 / temperature
	scaled := make([]float32, len(logits))
	for i, v := range logits {
		scaled[i] = float32(float64(v) * invT)
	}

	lse := logSumExp(scaled)
	probs := make([]float64, len(scaled))
	for i, v := range scaled {
		probs[i] = math.Exp(float64(v) - lse)
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if probs[order[a]] != probs[order[b]] {
			return probs[order[a]] > probs[order[b]]
		}
		return order[a] < order[b]
	})

	// Smallest prefix whose cumulative mass reaches nucleusP; the top token
	// always stays even when it alone exceeds the threshold.
	cut := len(order)
	var cum float64
	for i, id := range order {
		cum += probs[id]
		if cum >= nucleusP {
			cut = i + 1
			break
		}
	}

	kept := order[:cut]
	var total float64
	for _, id := range kept {
		total += probs[id]
	}

	r := rng() * total
	var c float64
	for _, id := range kept {
		c += probs[id]
		if r <= c {
			return id
		}
	}
	return kept[len(kept)-1]
}
