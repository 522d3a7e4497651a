// Package chunker splits document text into fixed-size pieces.
package chunker

const DefaultSize = 1000

// Chunker cuts text every Size runes. Overlap, when positive, makes each
// chunk start Size-Overlap runes after the previous one.
type Chunker struct {
	Size    int
	Overlap int
}

func New(size, overlap int) Chunker {
	size, overlap = normalize(size, overlap)
	return Chunker{Size: size, Overlap: overlap}
}

// normalize applies the default size and keeps overlap in [0, size/2] once it
// reaches size.
func normalize(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return size, overlap
}

// Split returns the ordered chunks of text. Empty input yields nil.
func (c Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	size, overlap := normalize(c.Size, c.Overlap)
	step := size - overlap

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
