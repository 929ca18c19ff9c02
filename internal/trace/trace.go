// Package trace holds the client-side session history: an append-only
// record of every step taken, sufficient to rebuild the rendered text and
// the chip-by-chip view without asking the model anything again.
package trace

import (
	"fmt"
	"strings"

	"github.com/samcharles93/tokenlens/internal/inference"
)

// Record is one completed step. Immutable once appended.
type Record struct {
	Index            int
	ContextLenBefore int
	Chosen           inference.ChosenToken
	TopK             []inference.Token
}

// Chip is the presentation view of one step: the chosen token plus the
// distribution it was picked from, replayed straight from the record.
type Chip struct {
	Index       int
	DisplayText string
	Prob        float64
	Surprisal   float64
	TopK        []inference.Token
}

// Trace is an ordered, append-only step history. It belongs to exactly one
// session; the caller serializes appends. records[i].Index == i always.
type Trace struct {
	records []Record
}

// New creates an empty trace: the state of a fresh session or of one
// whose initial context was just edited.
func New() *Trace {
	return &Trace{}
}

// Append adds one step. It is the only mutator and refuses records whose
// index does not continue the sequence, so a missed or duplicated step
// can't corrupt the history silently.
func (t *Trace) Append(rec Record) error {
	if rec.Index != len(t.records) {
		return fmt.Errorf("trace: record index %d does not follow length %d", rec.Index, len(t.records))
	}
	t.records = append(t.records, rec)
	return nil
}

// AppendStep converts a step result into the next record and appends it.
func (t *Trace) AppendStep(res *inference.StepResult) error {
	return t.Append(Record{
		Index:            len(t.records),
		ContextLenBefore: res.ContextLen,
		Chosen:           res.Chosen,
		TopK:             res.TopK,
	})
}

// Len returns the number of recorded steps.
func (t *Trace) Len() int { return len(t.records) }

// Records returns the history in order. Callers must not mutate entries.
func (t *Trace) Records() []Record { return t.records }

// Reset discards the history. Called when the user edits the initial
// context; the old records are meaningless against the new text.
func (t *Trace) Reset() {
	t.records = nil
}

// Text rebuilds the rendered output: the initial text followed by every
// chosen token's raw text in order. This is the same computation that
// produces the next step's context, so the two can never drift.
func (t *Trace) Text(initial string) string {
	var b strings.Builder
	b.WriteString(initial)
	for _, rec := range t.records {
		b.WriteString(rec.Chosen.RawText)
	}
	return b.String()
}

// Chips replays the stored records as presentation chips. No probability
// is recomputed; switching between collapsed text and detailed chips is
// free.
func (t *Trace) Chips() []Chip {
	chips := make([]Chip, len(t.records))
	for i, rec := range t.records {
		chips[i] = Chip{
			Index:       rec.Index,
			DisplayText: rec.Chosen.DisplayText,
			Prob:        rec.Chosen.Prob,
			Surprisal:   rec.Chosen.Surprisal,
			TopK:        rec.TopK,
		}
	}
	return chips
}
