// Package toy provides a tiny deterministic language model so the server
// and CLI run end-to-end without hosting real weights. It is an embedding
// matrix, a projection back to vocab logits, and a bias vector; quality is
// irrelevant, reproducibility is the point.
package toy

import (
	"context"
	"fmt"
	"math/rand"
)

// LM scores an id sequence by mixing token embeddings with exponential
// decay (recent tokens dominate) and projecting the mix to logits.
type LM struct {
	vocab  int
	hidden int
	seed   int64

	emb  []float32 // [vocab x hidden], row-major
	w    []float32 // [hidden x vocab], row-major
	bias []float32 // [vocab]
}

// decay weights the embedding mix toward the end of the context.
const decay = float32(0.7)

// NewLM constructs a model with the given vocabulary and hidden size.
// Weights are filled deterministically from the seed, so two models built
// with the same parameters score identically.
func NewLM(vocab, hidden int, seed int64) *LM {
	m := &LM{
		vocab:  vocab,
		hidden: hidden,
		seed:   seed,
		emb:    make([]float32, vocab*hidden),
		w:      make([]float32, hidden*vocab),
		bias:   make([]float32, vocab),
	}
	fillRand(m.emb, seed+11)
	fillRand(m.w, seed+23)
	fillRand(m.bias, seed+37)
	return m
}

// Forward computes next-position logits for the id sequence. An empty
// sequence is the cold start: the bias vector alone decides. Ids outside
// [0, vocab) are reduced modulo vocab, matching how the model treats any
// codec it is paired with.
func (m *LM) Forward(ctx context.Context, ids []int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := make([]float32, m.hidden)
	for _, id := range ids {
		id = wrap(id, m.vocab)
		row := m.emb[id*m.hidden : (id+1)*m.hidden]
		for i := range h {
			h[i] = h[i]*decay + row[i]
		}
	}

	logits := make([]float32, m.vocab)
	copy(logits, m.bias)
	for i := 0; i < m.hidden; i++ {
		hi := h[i]
		if hi == 0 {
			continue
		}
		row := m.w[i*m.vocab : (i+1)*m.vocab]
		for j := 0; j < m.vocab; j++ {
			logits[j] += hi * row[j]
		}
	}
	return logits, nil
}

func (m *LM) VocabSize() int { return m.vocab }

func (m *LM) ModelName() string {
	return fmt.Sprintf("toy-%dx%d-seed%d", m.vocab, m.hidden, m.seed)
}

func wrap(id, vocab int) int {
	id = id % vocab
	if id < 0 {
		id += vocab
	}
	return id
}

// fillRand fills dst with values in [-0.5, 0.5) from a seeded generator.
func fillRand(dst []float32, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = rng.Float32() - 0.5
	}
}
