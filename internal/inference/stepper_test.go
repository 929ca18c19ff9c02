package inference

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubScorer returns a fixed logit vector and counts invocations.
type stubScorer struct {
	logits []float32
	err    error
	calls  int
	delay  time.Duration
}

func (s *stubScorer) Forward(_ context.Context, _ []int) ([]float32, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.logits, nil
}

func (s *stubScorer) VocabSize() int    { return len(s.logits) }
func (s *stubScorer) ModelName() string { return "stub" }

// letterCodec maps 'a'+id <-> id over a small vocabulary. Token id 0
// doubles as the "newline" terminator so soften tests can target it.
type letterCodec struct {
	vocab int
	eos   int
}

func (c letterCodec) Encode(text string) []int {
	if text == "\n" {
		return []int{0}
	}
	ids := make([]int, 0, len(text))
	for _, r := range text {
		ids = append(ids, int(r-'a')%c.vocab)
	}
	return ids
}

func (c letterCodec) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteRune(rune('a' + id))
	}
	return b.String()
}

func (c letterCodec) VocabSize() int { return c.vocab }
func (c letterCodec) EOSID() int     { return c.eos }

func intPtr(v int) *int             { return &v }
func strPtr(v string) *string       { return &v }
func floatPtr(v float64) *float64   { return &v }
func boolPtr(v bool) *bool          { return &v }

func TestStepArgmaxKnownDistribution(t *testing.T) {
	scorer := &stubScorer{logits: []float32{2.0, 1.0, 0.1}}
	st := NewStepper(scorer, letterCodec{vocab: 3, eos: -1}, Config{}, nil)

	res, err := st.Step(context.Background(), StepOptions{
		Text: "abc",
		TopK: intPtr(3),
		Mode: strPtr("argmax"),
	})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Chosen.ID != 0 {
		t.Fatalf("expected argmax id 0, got %d", res.Chosen.ID)
	}
	if math.Abs(res.Chosen.Prob-0.659) > 5e-4 {
		t.Fatalf("chosen prob %v, want ≈ 0.659", res.Chosen.Prob)
	}
	if math.Abs(res.Chosen.Surprisal-0.417) > 5e-4 {
		t.Fatalf("surprisal %v, want ≈ 0.417", res.Chosen.Surprisal)
	}
	if res.AppendText != "a" {
		t.Fatalf("append text %q, want %q", res.AppendText, "a")
	}
	if res.ContextLen != 3 || res.Truncated {
		t.Fatalf("context len %d truncated %v, want 3 false", res.ContextLen, res.Truncated)
	}
	// k=3 requested over a 3-token vocabulary: the vocabulary wins the clamp.
	if res.UsedK != 3 {
		t.Fatalf("used k %d, want 3", res.UsedK)
	}
	if res.LastToken == nil || res.LastToken.RawText != "c" {
		t.Fatalf("last token %+v, want raw %q", res.LastToken, "c")
	}
}

func TestStepClampsRequestedK(t *testing.T) {
	vec := make([]float32, 64)
	for i := range vec {
		vec[i] = float32(64-i) * 0.05
	}
	st := NewStepper(&stubScorer{logits: vec}, letterCodec{vocab: 64, eos: -1}, Config{}, nil)

	tests := []struct {
		requested int
		want      int
	}{
		{3, 5},
		{50, 30},
		{10, 10},
	}
	for _, tc := range tests {
		res, err := st.Step(context.Background(), StepOptions{
			Text: "abc",
			TopK: intPtr(tc.requested),
			Mode: strPtr("argmax"),
		})
		if err != nil {
			t.Fatalf("step k=%d: %v", tc.requested, err)
		}
		if res.UsedK != tc.want {
			t.Fatalf("requested %d: used k %d, want %d", tc.requested, res.UsedK, tc.want)
		}
		if len(res.TopK) != tc.want {
			t.Fatalf("requested %d: %d candidates, want %d", tc.requested, len(res.TopK), tc.want)
		}
	}
}

func TestStepColdStart(t *testing.T) {
	st := NewStepper(&stubScorer{logits: []float32{0.5, 1.5, 0.2}}, letterCodec{vocab: 3, eos: -1}, Config{}, nil)

	res, err := st.Step(context.Background(), StepOptions{
		Text: "",
		Mode: strPtr("argmax"),
	})
	if err != nil {
		t.Fatalf("cold start step: %v", err)
	}
	if res.ContextLen != 0 || res.Truncated {
		t.Fatalf("cold start context len %d truncated %v", res.ContextLen, res.Truncated)
	}
	if res.LastToken != nil {
		t.Fatalf("cold start should have no last token, got %+v", res.LastToken)
	}
	if res.Chosen.ID != 1 {
		t.Fatalf("chosen id %d, want 1", res.Chosen.ID)
	}
}

func TestStepTruncatesToCap(t *testing.T) {
	vec := make([]float32, 8)
	st := NewStepper(&stubScorer{logits: vec}, letterCodec{vocab: 8, eos: -1}, Config{ContextCap: 4}, nil)

	res, err := st.Step(context.Background(), StepOptions{
		Text: "abcdefgh",
		Mode: strPtr("argmax"),
	})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !res.Truncated || res.ContextLen != 4 {
		t.Fatalf("truncated %v len %d, want true 4", res.Truncated, res.ContextLen)
	}
	if res.LastToken == nil || res.LastToken.RawText != "h" {
		t.Fatalf("last token should survive truncation, got %+v", res.LastToken)
	}
}

func TestStepInvalidModeRejectedBeforeScoring(t *testing.T) {
	scorer := &stubScorer{logits: []float32{1, 2}}
	st := NewStepper(scorer, letterCodec{vocab: 2, eos: -1}, Config{}, nil)

	_, err := st.Step(context.Background(), StepOptions{
		Text: "ab",
		Mode: strPtr("beam"),
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if scorer.calls != 0 {
		t.Fatalf("scorer was invoked %d times before validation", scorer.calls)
	}
}

func TestStepScorerFailureIsRetryable(t *testing.T) {
	scorer := &stubScorer{err: errors.New("connection refused")}
	st := NewStepper(scorer, letterCodec{vocab: 4, eos: -1}, Config{}, nil)

	res, err := st.Step(context.Background(), StepOptions{Text: "ab", Mode: strPtr("argmax")})
	if !errors.Is(err, ErrScorerUnavailable) {
		t.Fatalf("expected scorer unavailable, got %v", err)
	}
	if res != nil {
		t.Fatalf("no partial result on failure, got %+v", res)
	}
}

func TestStepNonFiniteLogitsFailTheStep(t *testing.T) {
	scorer := &stubScorer{logits: []float32{1, float32(math.NaN()), 2}}
	st := NewStepper(scorer, letterCodec{vocab: 3, eos: -1}, Config{}, nil)

	res, err := st.Step(context.Background(), StepOptions{Text: "ab", Mode: strPtr("argmax")})
	if !errors.Is(err, ErrNumericAnomaly) {
		t.Fatalf("expected numeric anomaly, got %v", err)
	}
	if res != nil {
		t.Fatalf("no partial result on anomaly, got %+v", res)
	}
}

func TestStepSoftensTerminators(t *testing.T) {
	// Token 0 is the terminator and wins narrowly; the 2.0 penalty must
	// push the choice to token 2.
	scorer := &stubScorer{logits: []float32{1.5, 1.0, 0.0}}
	st := NewStepper(scorer, letterCodec{vocab: 3, eos: -1}, Config{}, nil)

	plain, err := st.Step(context.Background(), StepOptions{Text: "ab", Mode: strPtr("argmax")})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if plain.Chosen.ID != 0 {
		t.Fatalf("unsoftened choice %d, want 0", plain.Chosen.ID)
	}

	softened, err := st.Step(context.Background(), StepOptions{
		Text:              "ab",
		Mode:              strPtr("argmax"),
		SoftenTerminators: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("softened step: %v", err)
	}
	if softened.Chosen.ID != 2 {
		t.Fatalf("softened choice %d, want 2", softened.Chosen.ID)
	}
}

func TestStepMergesChosenIntoTopK(t *testing.T) {
	// Strictly descending logits over 40 tokens; a draw near 1.0 with a
	// full nucleus lands far outside the top-5 slice.
	vec := make([]float32, 40)
	for i := range vec {
		vec[i] = -0.1 * float32(i)
	}
	st := NewStepper(&stubScorer{logits: vec}, letterCodec{vocab: 40, eos: -1}, Config{}, nil)

	res, err := st.Step(context.Background(), StepOptions{
		Text:        "abc",
		TopK:        intPtr(5),
		Mode:        strPtr("stochastic"),
		Temperature: floatPtr(1.0),
		NucleusP:    floatPtr(1.0),
		Rand:        func() float64 { return 0.999999 },
	})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Chosen.ID < 5 {
		t.Fatalf("draw unexpectedly landed inside the top slice: id %d", res.Chosen.ID)
	}
	if len(res.TopK) != 5 {
		t.Fatalf("merge changed top-k length: %d", len(res.TopK))
	}
	found := false
	for _, tok := range res.TopK {
		if tok.ID == res.Chosen.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("chosen id %d missing from reported top-k", res.Chosen.ID)
	}
	for i := 1; i < len(res.TopK); i++ {
		if res.TopK[i].Prob > res.TopK[i-1].Prob {
			t.Fatalf("top-k not descending after merge at %d", i)
		}
	}
}

func TestStepStochasticScriptedRepeatable(t *testing.T) {
	vec := []float32{0, 1, 2, 3, 4, 5}
	st := NewStepper(&stubScorer{logits: vec}, letterCodec{vocab: 6, eos: -1}, Config{}, nil)

	opts := func() StepOptions {
		draws := []float64{0.31, 0.77}
		i := 0
		return StepOptions{
			Text:        "abc",
			Mode:        strPtr("stochastic"),
			Temperature: floatPtr(0.9),
			NucleusP:    floatPtr(0.95),
			Rand: func() float64 {
				v := draws[i%len(draws)]
				i++
				return v
			},
		}
	}

	a, err := st.Step(context.Background(), opts())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	b, err := st.Step(context.Background(), opts())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if a.Chosen.ID != b.Chosen.ID {
		t.Fatalf("scripted randomness diverged: %d vs %d", a.Chosen.ID, b.Chosen.ID)
	}
}

func TestStepTemperatureAndNucleusClamped(t *testing.T) {
	vec := []float32{3, 2, 1}
	st := NewStepper(&stubScorer{logits: vec}, letterCodec{vocab: 3, eos: -1}, Config{}, nil)

	// Out-of-range values clamp instead of failing; the step succeeds.
	res, err := st.Step(context.Background(), StepOptions{
		Text:        "abc",
		Mode:        strPtr("stochastic"),
		Temperature: floatPtr(99.0),
		NucleusP:    floatPtr(0.01),
		Rand:        func() float64 { return 0 },
	})
	if err != nil {
		t.Fatalf("step with out-of-range params: %v", err)
	}
	if res.Chosen.ID != 0 {
		t.Fatalf("tight nucleus with draw 0 should pick the top token, got %d", res.Chosen.ID)
	}
}

func TestDistributionDoesNotChoose(t *testing.T) {
	scorer := &stubScorer{logits: []float32{2.0, 1.0, 0.1}}
	st := NewStepper(scorer, letterCodec{vocab: 3, eos: -1}, Config{}, nil)

	res, err := st.Distribution(context.Background(), "abc", 3)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if res.UsedK != 3 || len(res.TopK) != 3 {
		t.Fatalf("used k %d len %d, want 3 3", res.UsedK, len(res.TopK))
	}
	var sum float64
	for _, tok := range res.TopK {
		sum += tok.Prob
	}
	if math.Abs(sum-res.Coverage) > 1e-12 {
		t.Fatalf("coverage %v does not match sum %v", res.Coverage, sum)
	}
}

func TestScoreWatchdogTiers(t *testing.T) {
	var mu sync.Mutex
	var severities []bool

	cfg := Config{
		StillWorkingAfter: 5 * time.Millisecond,
		WarnAfter:         15 * time.Millisecond,
		OnSlowScore: func(_ time.Duration, severe bool) {
			mu.Lock()
			severities = append(severities, severe)
			mu.Unlock()
		},
	}
	scorer := &stubScorer{logits: []float32{1, 2, 3}, delay: 40 * time.Millisecond}
	st := NewStepper(scorer, letterCodec{vocab: 3, eos: -1}, cfg, nil)

	res, err := st.Step(context.Background(), StepOptions{Text: "abc", Mode: strPtr("argmax")})
	if err != nil {
		t.Fatalf("slow step should still complete: %v", err)
	}
	if res == nil {
		t.Fatalf("expected a completed result despite latency warnings")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(severities) != 2 {
		t.Fatalf("expected both latency tiers to fire, got %v", severities)
	}
	if severities[0] != false || severities[1] != true {
		t.Fatalf("expected mild then severe, got %v", severities)
	}
}
