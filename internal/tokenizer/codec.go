// Package tokenizer defines the text↔id codec boundary the stepping
// pipeline runs against, plus the display transform that makes raw token
// text safe to render.
package tokenizer

// Codec is the opaque text↔id boundary supplied by the model backend.
// Decode(Encode(text)) must reproduce text verbatim: leading spaces,
// Unicode and control characters included. Display output is for
// presentation only and must never feed back into concatenation.
type Codec interface {
	// Encode converts text to token ids. Empty text yields an empty (or
	// codec-defined beginning-of-sequence) id sequence.
	Encode(text string) []int

	// Decode converts token ids back to their exact text.
	Decode(ids []int) string

	// VocabSize is the fixed vocabulary size V; every id is in [0, V).
	VocabSize() int

	// EOSID is the end-of-sequence token id, or -1 when the vocabulary has
	// none.
	EOSID() int
}
