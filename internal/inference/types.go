package inference

import "context"

// Scorer is the external model backend: one forward pass over an id
// sequence, producing next-position logits over the full vocabulary. The
// call may be slow; it is the only suspend point in a step.
type Scorer interface {
	Forward(ctx context.Context, ids []int) ([]float32, error)
	VocabSize() int
	ModelName() string
}

// Token is one displayed candidate. RawText is the exact decoded bytes and
// is the only form ever concatenated; DisplayText is the rendering-safe
// transform.
type Token struct {
	ID          int
	RawText     string
	DisplayText string
	Prob        float64
	Logprob     float64
}

// ChosenToken is the picked token plus its surprisal (-logprob, ≥ 0).
type ChosenToken struct {
	Token
	Surprisal float64
}

// ContextToken identifies the final token of the prepared context.
type ContextToken struct {
	ID          int
	RawText     string
	DisplayText string
}

// DistResult is the read-only ranking of the next position: no token is
// chosen and no trace advances.
type DistResult struct {
	ContextLen int
	Truncated  bool
	UsedK      int
	TopK       []Token
	Coverage   float64
	LastToken  *ContextToken
}

// StepResult is one completed step. AppendText is the chosen token's raw
// text; appending it to the request text yields the next step's context.
type StepResult struct {
	ContextLen int
	Truncated  bool
	UsedK      int
	TopK       []Token
	Coverage   float64
	Chosen     ChosenToken
	AppendText string
	LastToken  *ContextToken
}
