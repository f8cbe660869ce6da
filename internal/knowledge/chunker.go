package knowledge

import "strings"

const (
	DefaultChunkSize    = 1400
	DefaultChunkOverlap = 250
)

// Chunker splits text into overlapping character windows.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker returns the 1400/250 window.
func DefaultChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

func (c Chunker) normalized() Chunker {
	if c.Size <= 0 {
		c.Size = DefaultChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		c.Overlap = 0
	}
	return c
}

// Count returns the number of windows for a text of length chars:
// ceil((L-overlap)/(size-overlap)), or 1 when L <= size.
func (c Chunker) Count(length int) int {
	c = c.normalized()
	if length <= 0 {
		return 0
	}
	if length <= c.Size {
		return 1
	}
	step := c.Size - c.Overlap
	return (length - c.Overlap + step - 1) / step
}

// Split returns the windows in document order. Windows are measured in runes
// so multi-byte characters are never cut. Whitespace-only text yields no chunks.
func (c Chunker) Split(text string) []string {
	c = c.normalized()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.Size {
		return []string{text}
	}

	step := c.Size - c.Overlap
	chunks := make([]string, 0, c.Count(len(runes)))
	for start := 0; ; start += step {
		end := min(start+c.Size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
