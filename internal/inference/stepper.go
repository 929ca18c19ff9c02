package inference

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/samcharles93/tokenlens/internal/logger"
	"github.com/samcharles93/tokenlens/internal/logits"
	"github.com/samcharles93/tokenlens/internal/tokenizer"
)

// Stepper runs one synchronous step: encode → score → rank → select. It is
// stateless across steps; the caller owns the session trace and must
// serialize step requests per session.
type Stepper struct {
	scorer Scorer
	codec  tokenizer.Codec
	cfg    Config
	log    logger.Logger
}

// NewStepper wires a scorer and codec under the given policy.
func NewStepper(scorer Scorer, codec tokenizer.Codec, cfg Config, log logger.Logger) *Stepper {
	if log == nil {
		log = logger.Default()
	}
	return &Stepper{
		scorer: scorer,
		codec:  codec,
		cfg:    cfg.withDefaults(),
		log:    log.With("component", "stepper"),
	}
}

// Config returns the resolved policy the stepper runs under.
func (s *Stepper) Config() Config { return s.cfg }

// Codec returns the codec the stepper encodes against.
func (s *Stepper) Codec() tokenizer.Codec { return s.codec }

// Scorer returns the model backend.
func (s *Stepper) Scorer() Scorer { return s.scorer }

// Step performs one full step and returns the chosen token with its top-k
// context. On any failure the result is nil and nothing partial escapes:
// the caller appends to its trace only on success.
func (s *Stepper) Step(ctx context.Context, opts StepOptions) (*StepResult, error) {
	req, err := resolveStep(opts, s.cfg)
	if err != nil {
		return nil, err
	}

	win := PrepareContext(req.text, s.codec, s.cfg.ContextCap)

	vec, err := s.score(ctx, win.IDs)
	if err != nil {
		return nil, scorerUnavailableError{err: err}
	}

	if req.soften {
		vec = logits.Soften(vec, s.terminatorIDs(), s.cfg.SoftPenalty)
	}

	ranking, err := logits.Rank(vec, req.topK, s.cfg.bounds())
	if err != nil {
		return nil, wrapRankErr(err)
	}

	rng := req.rand
	if rng == nil && req.policy.Mode == logits.ModeStochastic {
		// Per-call generator: no shared mutable global state.
		rng = rand.New(rand.NewSource(time.Now().UnixNano())).Float64
	}

	chosen, err := logits.Choose(vec, req.policy, rng)
	if err != nil {
		return nil, wrapRankErr(err)
	}

	// The draw may land outside the ranked slice; the caller must still see
	// the chosen token among the candidates.
	ranking.Merge(chosen.Candidate())

	chosenTok := ChosenToken{
		Token:     s.decorate(logits.Candidate{ID: chosen.ID, Prob: chosen.Prob, Logprob: chosen.Logprob}),
		Surprisal: chosen.Surprisal,
	}

	return &StepResult{
		ContextLen: win.Len,
		Truncated:  win.Truncated,
		UsedK:      ranking.UsedK,
		TopK:       s.decorateAll(ranking.Candidates),
		Coverage:   ranking.Coverage,
		Chosen:     chosenTok,
		AppendText: chosenTok.RawText,
		LastToken:  win.lastToken(s.codec),
	}, nil
}

// Distribution ranks the next position without choosing anything; no trace
// advances and the soften toggle does not apply.
func (s *Stepper) Distribution(ctx context.Context, text string, topK int) (*DistResult, error) {
	win := PrepareContext(text, s.codec, s.cfg.ContextCap)

	vec, err := s.score(ctx, win.IDs)
	if err != nil {
		return nil, scorerUnavailableError{err: err}
	}

	ranking, err := logits.Rank(vec, topK, s.cfg.bounds())
	if err != nil {
		return nil, wrapRankErr(err)
	}

	return &DistResult{
		ContextLen: win.Len,
		Truncated:  win.Truncated,
		UsedK:      ranking.UsedK,
		TopK:       s.decorateAll(ranking.Candidates),
		Coverage:   ranking.Coverage,
		LastToken:  win.lastToken(s.codec),
	}, nil
}

// terminatorIDs resolves the token ids the soft bias targets: the first
// newline token and the end-of-sequence token when present.
func (s *Stepper) terminatorIDs() []int {
	var ids []int
	if nl := s.codec.Encode("\n"); len(nl) > 0 {
		ids = append(ids, nl[0])
	}
	if eos := s.codec.EOSID(); eos >= 0 {
		ids = append(ids, eos)
	}
	return ids
}

func (s *Stepper) decorate(c logits.Candidate) Token {
	raw := s.codec.Decode([]int{c.ID})
	return Token{
		ID:          c.ID,
		RawText:     raw,
		DisplayText: tokenizer.Display(raw),
		Prob:        c.Prob,
		Logprob:     c.Logprob,
	}
}

func (s *Stepper) decorateAll(cands []logits.Candidate) []Token {
	out := make([]Token, len(cands))
	for i, c := range cands {
		out[i] = s.decorate(c)
	}
	return out
}

func wrapRankErr(err error) error {
	if errors.Is(err, logits.ErrNonFinite) {
		return numericAnomalyError{err: err}
	}
	return newInvalidRequest(err.Error())
}
