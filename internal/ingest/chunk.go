package ingest

import "strings"

// chunkText splits text into overlapping chunks of at most size runes.
// The split prefers the last sentence boundary in the window, then the
// last space, so chunks rarely cut words. overlap runes from the end of
// one chunk lead the next to keep context across the boundary.
func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		end = splitPoint(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// splitPoint finds where to cut the window runes[start:end): after the
// last sentence terminator if one falls in the second half, else at the
// last space, else at end.
func splitPoint(runes []rune, start, end int) int {
	half := start + (end-start)/2
	for i := end - 1; i > half; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	for i := end - 1; i > half; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}
