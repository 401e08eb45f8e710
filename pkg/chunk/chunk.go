// Package chunk splits document text into overlapping fixed-size word
// windows for embedding and indexing.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	specialsRe   = regexp.MustCompile(`[^\w\s.,!?-]`)
)

// Split chunks text into sliding windows of wordsPerChunk whitespace-separated
// words, each window advancing by wordsPerChunk-overlap words. The final
// window may be shorter. Pure function of its inputs.
//
// Input: text, window size in words, overlap in words
// Output: ordered chunk strings; empty slice for blank input
// Errors: wordsPerChunk <= 0, overlap < 0, or overlap >= wordsPerChunk
//
// Example:
//
//	chunks, err := chunk.Split(text, 300, 100)
func Split(text string, wordsPerChunk, overlap int) ([]string, error) {
	if wordsPerChunk <= 0 {
		return nil, fmt.Errorf("words_per_chunk must be positive, got %d", wordsPerChunk)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= wordsPerChunk {
		return nil, fmt.Errorf("overlap (%d) must be less than words_per_chunk (%d)", overlap, wordsPerChunk)
	}
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}, nil
	}

	chunks := make([]string, 0, 1+len(words)/max(1, wordsPerChunk-overlap))
	start := 0
	for start < len(words) {
		end := min(start+wordsPerChunk, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))

		// A window that reached the end terminates the loop; stepping back by
		// the overlap would otherwise emit a duplicate trailing window.
		if end >= len(words) {
			break
		}
		start = end - overlap
	}

	return chunks, nil
}

// Clean normalizes whitespace and strips special characters while keeping
// basic punctuation, mirroring what the ingest path feeds the chunker.
//
// Example:
//
//	text := chunk.Clean(rawPDFText)
func Clean(text string) string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	return specialsRe.ReplaceAllString(text, "")
}
