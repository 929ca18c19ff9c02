package tokenizer

// ByteCodec is a byte-level codec: every token is one byte, vocabulary size
// 256. Round-trip fidelity is exact by construction, which makes it the
// reference codec for local runs and tests; real deployments plug in the
// backend's own tokenizer.
type ByteCodec struct{}

// NewByteCodec returns the byte-level codec.
func NewByteCodec() ByteCodec { return ByteCodec{} }

func (ByteCodec) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids
}

func (ByteCodec) Decode(ids []int) string {
	buf := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < 256 {
			buf = append(buf, byte(id))
		}
	}
	return string(buf)
}

func (ByteCodec) VocabSize() int { return 256 }

// EOSID reports no end-of-sequence token; a byte stream has none.
func (ByteCodec) EOSID() int { return -1 }
