package publisher

import "bytes"

// Chunk groups serialized messages, in order, into runs whose total size
// stays within budget. A message larger than budget on its own always gets a
// chunk of its own.
func Chunk(items [][]byte, budget int) [][][]byte {
	var (
		chunks [][][]byte
		cur    [][]byte
		sum    int
	)
	closeChunk := func() {
		if len(cur) > 0 {
			chunks = append(chunks, cur)
			cur, sum = nil, 0
		}
	}
	for _, it := range items {
		n := len(it)
		if n > budget {
			closeChunk()
			chunks = append(chunks, [][]byte{it})
			continue
		}
		if sum+n > budget {
			closeChunk()
		}
		cur = append(cur, it)
		sum += n
	}
	closeChunk()
	return chunks
}

// encodeChunk renders a chunk as a JSON array of its messages.
func encodeChunk(chunk [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(chunk, []byte{','}))
	buf.WriteByte(']')
	return buf.Bytes()
}
