package inference

import "github.com/samcharles93/tokenlens/internal/tokenizer"

// ContextWindow is the id sequence the scorer will see.
type ContextWindow struct {
	IDs       []int
	Len       int
	Truncated bool
}

// PrepareContext encodes text and enforces the context cap by keeping the
// LAST cap ids; recent tokens matter more than the opening ones. Empty
// text is a legitimate cold start, not an error. cap <= 0 means the
// default cap.
func PrepareContext(text string, codec tokenizer.Codec, cap int) ContextWindow {
	if cap <= 0 {
		cap = DefaultContextCap
	}
	ids := codec.Encode(text)
	if len(ids) > cap {
		ids = ids[len(ids)-cap:]
		return ContextWindow{IDs: ids, Len: cap, Truncated: true}
	}
	return ContextWindow{IDs: ids, Len: len(ids)}
}

// lastToken describes the final context token, or nil for a cold start.
func (w ContextWindow) lastToken(codec tokenizer.Codec) *ContextToken {
	if len(w.IDs) == 0 {
		return nil
	}
	id := w.IDs[len(w.IDs)-1]
	raw := codec.Decode([]int{id})
	return &ContextToken{
		ID:          id,
		RawText:     raw,
		DisplayText: tokenizer.Display(raw),
	}
}
