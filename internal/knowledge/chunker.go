package knowledge

import "strings"

// Chunk is one passage of a source document prepared for indexing.
type Chunk struct {
	Source  string
	Content string
}

// chunker splits document text into overlapping fixed-size chunks,
// preferring to cut at whitespace so words stay intact.
type chunker struct {
	size    int
	overlap int
}

func newChunker(size, overlap int) *chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &chunker{size: size, overlap: overlap}
}

// Split breaks content into chunks of at most size runes with the
// configured overlap between consecutive chunks.
func (c *chunker) Split(source, content string) []Chunk {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Walk back to the nearest whitespace so we don't cut a word.
			cut := end
			for cut > start && !isSpace(runes[cut-1]) {
				cut--
			}
			if cut > start {
				end = cut
			}
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			chunks = append(chunks, Chunk{Source: source, Content: text})
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
