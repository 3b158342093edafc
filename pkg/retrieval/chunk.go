package retrieval

import "strings"

const (
	chunkMaxSize = 1000
	chunkOverlap = 50
)

// Chunk is a piece of a document. Offset is its starting byte position and
// seeds the stable chunk id.
type Chunk struct {
	Text   string
	Offset int
}

// ChunkText splits content on line boundaries into chunks of at most
// chunkMaxSize runes. Each chunk after the first starts with the last
// chunkOverlap runes of its predecessor. Lines longer than chunkMaxSize are
// hard-split.
func ChunkText(content string) []Chunk {
	var chunks []Chunk
	var current []rune
	start := 0
	offset := 0

	flush := func() {
		text := strings.TrimSpace(string(current))
		if text != "" {
			chunks = append(chunks, Chunk{Text: text, Offset: start})
		}
	}

	for _, line := range splitLongLines(strings.Split(content, "\n")) {
		lineRunes := []rune(line + "\n")

		if len(current) > 0 && len(current)+len(lineRunes) > chunkMaxSize {
			flush()
			if len(current) > chunkOverlap {
				tail := current[len(current)-chunkOverlap:]
				current = append([]rune(nil), tail...)
				start = offset - len(string(tail))
			} else {
				current = nil
				start = offset
			}
		}

		current = append(current, lineRunes...)
		offset += len(line) + 1
	}

	flush()
	return chunks
}

func splitLongLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	limit := chunkMaxSize - chunkOverlap - 1
	for _, line := range lines {
		r := []rune(line)
		for len(r) > limit {
			out = append(out, string(r[:limit]))
			r = r[limit:]
		}
		out = append(out, string(r))
	}
	return out
}
